package dataset

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/models"
)

var captions = []string{
	"Dia lindo no parque! 🌳",
	"Momento em família ❤️",
	"Novo hobby! 📚",
	"Passeio incrível! ✈️",
	"Almoço delicioso! 🍕",
	"Treino do dia 💪",
	"Pôr do sol maravilhoso 🌅",
	"Final de semana perfeito! 😊",
	"Novas conquistas! 🏆",
	"Momento de paz ✨",
	"Com os amigos! 👫",
	"Viagem dos sonhos! 🌍",
	"Novo livro! 📖",
	"Dia de festa! 🎉",
	"Natureza é vida! 🌿",
}

var normalComments = []string{
	"Que legal! 😊", "Adorei! ❤️", "Incrível! 🌟",
	"Belo momento! 📸", "Maravilhoso! ✨", "Top! 🔥",
	"Muito bom! 👍", "Fantástico! 💫", "Show! 🎉",
	"Parabéns! 👏", "Que foto incrível! 📷", "Amei! 💖",
	"Sensacional! 😍", "Perfeito! 💯", "Incrível! 🤩",
	"Que máximo! 🚀", "Adorável! 🥰", "Fantástico! 🌈",
	"Impressionante! 😲", "Excelente! ⭐",
}

var suspiciousComments = []string{
	"👧💕 Que fofa!",
	"💜💜 linda demais",
	"👧🏻💖 maravilhosa",
	"🌀👦 garoto bonito",
	"👦🌀 que menino lindo",
	"que menina linda",
	"garotinha fofa demais",
	"menino bonito esse",
	"👧💕💕 linda menina",
	"🌀👦🌀 que garoto",
	"💕👧🏻 tão fofa",
	"👦💙 lindo menino",
	"menina encantadora",
	"garoto lindo",
}

var suspiciousUsers = []string{"predator_1", "danger_acc", "suspect_usr", "bad_actor", "risk_user"}

const (
	normalUserCount = 200
	dateSpan        = 30 * 24 * time.Hour
)

// Generator produces labelled synthetic datasets.
type Generator struct {
	Rand *rand.Rand
	Now  func() time.Time
}

// NewGenerator returns a Generator whose output is fully determined by seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate builds postsCount posts and commentsCount comments of which exactly
// int(commentsCount*ratio) are suspicious. It returns the posts, the comments
// and the number of suspicious comments generated.
func (g *Generator) Generate(postsCount, commentsCount int, ratio float64) ([]models.Post, []models.Comment, int, error) {
	if postsCount < 1 {
		return nil, nil, 0, fmt.Errorf("posts count must be at least 1, got %d", postsCount)
	}
	if commentsCount < 0 {
		return nil, nil, 0, fmt.Errorf("comments count must not be negative, got %d", commentsCount)
	}
	if ratio < 0 || ratio > 1 {
		return nil, nil, 0, fmt.Errorf("suspicious ratio must be between 0 and 1, got %v", ratio)
	}

	expected := int(float64(commentsCount) * ratio)
	logger.Debug("Generating dataset: %d posts, %d comments, %d suspicious expected", postsCount, commentsCount, expected)

	posts := make([]models.Post, 0, postsCount)
	for i := 1; i <= postsCount; i++ {
		uid := int64(100 + g.intN(900))
		posts = append(posts, models.Post{
			PostID:     int64(i),
			UserID:     uid,
			Username:   fmt.Sprintf("user_%d", uid),
			Caption:    pick(g, captions),
			PostDate:   g.date(),
			LikesCount: g.intN(201),
		})
	}

	comments := make([]models.Comment, 0, commentsCount)
	suspicious := 0
	for i := 1; i <= commentsCount; i++ {
		remaining := expected - suspicious
		slots := commentsCount - i + 1
		forced := remaining > 0 && remaining >= slots

		c := models.Comment{
			CommentID:   int64(i),
			PostID:      int64(1 + g.intN(postsCount)),
			CommentDate: g.date(),
		}
		var label bool
		if forced || (remaining > 0 && g.randFloat() < ratio) {
			c.Username = pick(g, suspiciousUsers)
			c.Text = pick(g, suspiciousComments)
			label = true
			suspicious++
		} else {
			c.Username = fmt.Sprintf("normal_user_%d", 1+g.intN(normalUserCount))
			c.Text = pick(g, normalComments)
		}
		c.UserID = userID(c.Username)
		c.Label = &label
		comments = append(comments, c)
	}

	logger.Info("Generated dataset: %d posts, %d comments, %d suspicious", len(posts), len(comments), suspicious)
	return posts, comments, suspicious, nil
}

func (g *Generator) intN(n int) int {
	if g.Rand == nil {
		return rand.IntN(n)
	}
	return g.Rand.IntN(n)
}

func (g *Generator) randFloat() float64 {
	if g.Rand == nil {
		return rand.Float64()
	}
	return g.Rand.Float64()
}

// date returns a day within the 30 days before now.
func (g *Generator) date() time.Time {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	t := now().UTC().Add(-time.Duration(g.intN(int(dateSpan/time.Second)+1)) * time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func pick(g *Generator, items []string) string {
	return items[g.intN(len(items))]
}

// userID derives a stable user ID in [0, 1000) from a username.
func userID(username string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int64(h.Sum32() % 1000)
}

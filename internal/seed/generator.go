// ABOUTME: Row generator producing synthetic grid rows with JSON payload blobs.
// ABOUTME: Optionally uses OpenAI to build the word vocabulary, falling back to static words.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/2389/rowview/internal/rows"
)

const (
	// PayloadField is the field holding the JSON-string blob of e-<n> keys.
	PayloadField = "payload"
	// SharedColumns is how many lorem columns every row of a batch shares.
	SharedColumns = 3

	maxPayloadSlots  = 30
	payloadKeepRatio = 0.4
	extraFields      = 4
	extraKeepRatio   = 0.5
	maxAge           = 365 * 24 * time.Hour
)

// Vocabulary is the word pool rows are built from.
type Vocabulary struct {
	Countries []string `json:"countries"`
	Words     []string `json:"words"`
	Animals   []string `json:"animals"`
}

func (v Vocabulary) valid() bool {
	return len(v.Countries) > 0 && len(v.Words) >= SharedColumns && len(v.Animals) > 0
}

// Generator creates fake rows from a vocabulary, optionally fetched from OpenAI.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string

	mu    sync.Mutex
	rng   *rand.Rand
	vocab Vocabulary
	now   func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand makes generation deterministic for a given seed.
func WithRand(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock sets the reference time createdAt values are drawn back from.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithModel overrides the OpenAI model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithoutAI forces the static vocabulary even when an API key is present.
func WithoutAI() Option {
	return func(g *Generator) {
		g.useAI = false
		g.client = nil
	}
}

// WithVocabulary replaces the static vocabulary.
func WithVocabulary(v Vocabulary) Option {
	return func(g *Generator) {
		if v.valid() {
			g.vocab = v
		}
	}
}

// NewGenerator creates a generator, loading the API key from .env if available.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		vocab: staticVocabulary(),
		now:   time.Now,
	}

	// Try to load .env from current dir or parent dirs
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}

	g.model = os.Getenv("OPENAI_MODEL")
	if g.model == "" {
		g.model = "gpt-5-mini"
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		g.client = openai.NewClient(apiKey)
		g.useAI = true
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if g.useAI {
		log.Printf("OpenAI API key found, vocabulary will use model: %s", g.model)
	}
	return g
}

// UsesAI reports whether PrepareVocabulary will call OpenAI.
func (g *Generator) UsesAI() bool {
	return g.useAI
}

// PrepareVocabulary fetches a vocabulary from OpenAI. Any failure keeps the
// static vocabulary, so the returned error is informational.
func (g *Generator) PrepareVocabulary(ctx context.Context) error {
	if !g.useAI {
		return nil
	}

	log.Print("Generating row vocabulary via AI...")
	vocab, err := g.generateVocabulary(ctx)
	if err != nil {
		log.Printf("AI vocabulary failed, using static words: %v", err)
		return err
	}
	if !vocab.valid() {
		log.Print("AI vocabulary incomplete, using static words")
		return fmt.Errorf("vocabulary incomplete")
	}

	g.mu.Lock()
	g.vocab = vocab
	g.mu.Unlock()
	log.Printf("AI vocabulary ready: %d words, %d countries", len(vocab.Words), len(vocab.Countries))
	return nil
}

// Generate creates count rows. Rows of one call share the same lorem columns.
func (g *Generator) Generate(count int) []rows.Row {
	if count <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	shared := g.sharedColumns()
	out := make([]rows.Row, count)
	for i := range out {
		out[i] = g.row(shared)
	}
	return out
}

func (g *Generator) row(shared []string) rows.Row {
	age := time.Duration(g.rng.Int64N(int64(maxAge)))
	r := rows.Row{
		ID:        uuid.NewString(),
		Country:   g.pick(g.vocab.Countries),
		CreatedAt: g.now().Add(-age).UTC().Format(time.RFC3339),
		Fields:    make(map[string]any, len(shared)+extraFields+1),
	}

	for _, col := range shared {
		r.Fields[col] = g.pick(g.vocab.Words)
	}
	r.Fields[PayloadField] = g.payload()
	for i := 0; i < extraFields; i++ {
		if g.rng.Float64() < extraKeepRatio {
			continue
		}
		r.Fields[fmt.Sprintf("x%d", i)] = g.pick(g.vocab.Animals)
	}
	return r
}

// payload renders e-<n> keys in slot order as a JSON object string.
func (g *Generator) payload() string {
	slots := g.rng.IntN(maxPayloadSlots) + 1

	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i := 0; i < slots; i++ {
		if g.rng.Float64() >= payloadKeepRatio {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(fmt.Sprintf("e-%d", i))
		val, _ := json.Marshal(g.pick(g.vocab.Words))
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.String()
}

// sharedColumns picks distinct words that do not shadow any fixed row field.
func (g *Generator) sharedColumns() []string {
	reserved := map[string]bool{PayloadField: true}
	for _, k := range rows.CoreKeys() {
		reserved[k] = true
	}
	for i := 0; i < extraFields; i++ {
		reserved[fmt.Sprintf("x%d", i)] = true
	}

	cols := make([]string, 0, SharedColumns)
	for _, idx := range g.rng.Perm(len(g.vocab.Words)) {
		w := g.vocab.Words[idx]
		if reserved[w] {
			continue
		}
		reserved[w] = true
		cols = append(cols, w)
		if len(cols) == SharedColumns {
			break
		}
	}
	return cols
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

func (g *Generator) generateVocabulary(ctx context.Context) (Vocabulary, error) {
	prompt := `Generate a vocabulary for fake tabular data. Return a JSON object with:
- "countries": 40 real country names
- "words": 80 short lowercase single words (lorem-ipsum style or common English)
- "animals": 20 animal types (e.g. "bird", "fish", "cat")
Words must contain only letters. No duplicates within a list.`

	return callOpenAI[Vocabulary](ctx, g.client, g.model, prompt)
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}

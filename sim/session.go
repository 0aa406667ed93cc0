package sim

import (
	"fmt"
	"math/rand"

	"fieldsync"
	"fieldsync/internal/document"
)

type ChaosConfig struct {
	Seed         int64
	TypeProb     float64
	DeleteProb   float64
	CutProb      float64
	OutsideProb  float64
	CRLFProb     float64
	MaxInsertLen int
}

func DefaultChaosConfig(seed int64) ChaosConfig {
	return ChaosConfig{
		Seed:         seed,
		TypeProb:     0.5,
		DeleteProb:   0.25,
		CutProb:      0.1,
		OutsideProb:  0.1,
		CRLFProb:     0.3,
		MaxInsertLen: 4,
	}
}

// Session takes turns between clients: each step is one action by one
// client, or by an outside party on the document, after which the acting
// client's checks run to completion.
type Session struct {
	Doc     *document.Doc
	Clients []*Client
	config  ChaosConfig
	rng     *rand.Rand
	steps   int
}

func NewSession(text string, clients int, config ChaosConfig) (*Session, error) {
	s := &Session{
		Doc:    document.New(text),
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	for i := 0; i < clients; i++ {
		c, err := NewClient(s.Doc, siteIdFor(i), s.rng.Float64() < config.CRLFProb)
		if err != nil {
			return nil, err
		}
		s.Clients = append(s.Clients, c)
	}
	return s, nil
}

func siteIdFor(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return string(rune('A'+(i/26)-1)) + string(rune('a'+(i%26)))
}

// Step performs one action.
func (s *Session) Step() {
	s.steps++
	if s.rng.Float64() < s.config.OutsideProb {
		s.outsideEdit()
		return
	}
	c := s.Clients[s.rng.Intn(len(s.Clients))]
	c.RandomEdit(s.rng, s.config)
	c.Settle()
}

func (s *Session) outsideEdit() {
	start, end := randomRange(s.rng, s.Doc.String())
	if start < end && s.rng.Intn(2) == 0 {
		s.Doc.Remove(start, end-start)
		return
	}
	s.Doc.Insert(start, randomText(s.rng, s.config.MaxInsertLen))
}

// Run performs n steps.
func (s *Session) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

func (s *Session) Steps() int { return s.steps }

// Converged returns an error naming the first client whose field or
// snapshot differs from the document.
func (s *Session) Converged() error {
	want := s.Doc.String()
	for _, c := range s.Clients {
		if got := c.Document(); got != want {
			return fmt.Errorf("client %s diverged after %d steps: got %q, want %q", c.SiteId, s.steps, got, want)
		}
		if got := fieldsync.NormalizeNewlines(c.Binding.Snapshot()); got != want {
			return fmt.Errorf("client %s snapshot stale after %d steps: got %q, want %q", c.SiteId, s.steps, got, want)
		}
	}
	return nil
}

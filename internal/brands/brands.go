package brands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

var ErrNotFound = errors.New("brand not found")

// document is the on-disk layout: profiles keyed by display name.
type document struct {
	Brands map[string]domain.BrandProfile `json:"brands" yaml:"brands"`
}

// Store is a read-only set of brand profiles.
type Store struct {
	byKey map[string]domain.BrandProfile
	names []string
}

// Load reads a JSON or YAML brands document. Profiles that fail validation
// are skipped with a warning.
func Load(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("Brands")

	var doc document
	if err := cleanenv.ReadConfig(path, &doc); err != nil {
		return nil, fmt.Errorf("read brands %s: %w", path, err)
	}

	s := New(nil)
	for name, profile := range doc.Brands {
		if strings.TrimSpace(profile.Name) == "" {
			profile.Name = name
		}
		if err := s.add(profile); err != nil {
			log.Warn("Skipping brand profile", "brand", name, "error", err)
		}
	}
	log.Info("Loaded brand profiles", "path", path, "count", len(s.names))
	return s, nil
}

// FromConfig loads the document named by the configuration.
func FromConfig(cfg *config.Config, log logger.Logger) (*Store, error) {
	return Load(cfg.Research.BrandsPath, log)
}

// New builds a store from profiles, ignoring invalid ones.
func New(profiles []domain.BrandProfile) *Store {
	s := &Store{byKey: make(map[string]domain.BrandProfile)}
	for _, p := range profiles {
		_ = s.add(p)
	}
	return s
}

func (s *Store) add(p domain.BrandProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	key := strings.ToLower(strings.TrimSpace(p.Name))
	if _, dup := s.byKey[key]; dup {
		return fmt.Errorf("duplicate brand %q", p.Name)
	}
	s.byKey[key] = p
	s.names = append(s.names, p.Name)
	slices.SortFunc(s.names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return nil
}

// Get finds a profile by name, ignoring case and surrounding space.
func (s *Store) Get(name string) (domain.BrandProfile, error) {
	p, ok := s.byKey[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.BrandProfile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

// Names lists profile names alphabetically.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

// All returns every profile in name order.
func (s *Store) All() []domain.BrandProfile {
	out := make([]domain.BrandProfile, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byKey[strings.ToLower(n)])
	}
	return out
}

func (s *Store) Len() int { return len(s.names) }

// Package faq stores short answers under keys, per guild, and suggests
// close keys when a lookup misses.
package faq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/metrics"
	"github.com/physum/physbot/pkg/storage"
)

const (
	// MinScore is the similarity a key needs to be suggested.
	MinScore = 75
	// MaxSuggestions caps the keys offered after a miss.
	MaxSuggestions = 3

	MaxKeyLength     = 100
	MaxContentLength = 2000

	// subsequenceScore is given to keys containing the query's characters in order.
	subsequenceScore = 90
)

var (
	ErrEmptyKey     = errors.New("the key is empty")
	ErrKeyTooLong   = fmt.Errorf("keys are at most %d characters", MaxKeyLength)
	ErrEmptyContent = errors.New("the content is empty")
	ErrTooLong      = fmt.Errorf("entries are at most %d characters", MaxContentLength)
)

// NotFoundError is returned by Show for a key without an entry.
type NotFoundError struct {
	Key         string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no faq entry under %q", e.Key)
}

// Store is the persistence the service needs.
type Store interface {
	SaveFAQ(ctx context.Context, e storage.FAQEntry) error
	GetFAQ(ctx context.Context, guildID, key string) (*storage.FAQEntry, error)
	FAQKeys(ctx context.Context, guildID string) ([]string, error)
	DeleteFAQ(ctx context.Context, guildID, key string) (bool, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Show returns the entry under key. A miss returns a *NotFoundError carrying
// the closest keys.
func (s *Service) Show(ctx context.Context, guildID, key string) (*storage.FAQEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	e, err := s.store.GetFAQ(ctx, guildID, key)
	if err != nil {
		return nil, err
	}
	if e != nil {
		metrics.FAQLookups.WithLabelValues("hit").Inc()
		return e, nil
	}

	metrics.FAQLookups.WithLabelValues("miss").Inc()
	suggestions, err := s.Suggest(ctx, guildID, key)
	if err != nil {
		log.DatabaseLogger().Warn("FAQ suggestions unavailable", "guild_id", guildID, "error", err)
	}
	return nil, &NotFoundError{Key: key, Suggestions: suggestions}
}

// Create saves a new entry. An existing key yields storage.ErrFAQExists.
func (s *Service) Create(ctx context.Context, guildID, userID, key, content string) error {
	key = strings.TrimSpace(key)
	content = strings.TrimSpace(content)
	switch {
	case key == "":
		return ErrEmptyKey
	case utf8.RuneCountInString(key) > MaxKeyLength:
		return ErrKeyTooLong
	case content == "":
		return ErrEmptyContent
	case utf8.RuneCountInString(content) > MaxContentLength:
		return ErrTooLong
	}

	err := s.store.SaveFAQ(ctx, storage.FAQEntry{
		GuildID:   guildID,
		Key:       key,
		Content:   content,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	log.ApplicationLogger().Info("FAQ entry created", "guild_id", guildID, "key", key, "user_id", userID)
	return nil
}

// Delete removes the entry under key and reports whether there was one.
func (s *Service) Delete(ctx context.Context, guildID, key string) (bool, error) {
	ok, err := s.store.DeleteFAQ(ctx, guildID, strings.TrimSpace(key))
	if err != nil {
		return false, err
	}
	if ok {
		log.ApplicationLogger().Info("FAQ entry deleted", "guild_id", guildID, "key", key)
	}
	return ok, nil
}

// Suggest returns up to MaxSuggestions keys scoring at least MinScore
// against key, best first.
func (s *Service) Suggest(ctx context.Context, guildID, key string) ([]string, error) {
	keys, err := s.store.FAQKeys(ctx, guildID)
	if err != nil {
		return nil, err
	}
	type scored struct {
		key   string
		score int
	}
	var hits []scored
	for _, k := range keys {
		if sc := Similarity(key, k); sc >= MinScore {
			hits = append(hits, scored{k, sc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(hits) && i < MaxSuggestions; i++ {
		out = append(out, hits[i].key)
	}
	return out, nil
}

// Complete lists keys matching the typed prefix for autocompletion, closest
// first. An empty input lists keys in order.
func (s *Service) Complete(ctx context.Context, guildID, typed string, limit int) ([]string, error) {
	keys, err := s.store.FAQKeys(ctx, guildID)
	if err != nil {
		return nil, err
	}
	typed = strings.TrimSpace(typed)
	var out []string
	if typed == "" {
		out = keys
	} else {
		ranks := fuzzy.RankFindNormalizedFold(typed, keys)
		sort.Sort(ranks)
		for _, r := range ranks {
			out = append(out, r.Target)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Similarity scores two keys from 0 to 100. It is the indel ratio of the
// case-folded keys, where a substitution costs a deletion plus an insertion,
// raised to 90 when b holds a's characters in order.
func Similarity(a, b string) int {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	score := 100 * (total - indelDistance(ra, rb)) / total
	if score < subsequenceScore && len(ra) > 0 && fuzzy.MatchNormalizedFold(a, b) {
		score = subsequenceScore
	}
	return score
}

// indelDistance counts the insertions and deletions turning a into b, which
// is len(a)+len(b) minus twice their longest common subsequence.
func indelDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}

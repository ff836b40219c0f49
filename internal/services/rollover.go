package services

// Rollover of recurring income and expenses into a new month. Templates are
// resolved from the whole history, and each one produces at most one entry
// per period dated on the 1st.

import (
	"fmt"
	"strings"
	"time"

	"finmate/internal/core"

	"github.com/google/uuid"
)

// GuardMode selects how rollover decides a period is already materialised.
type GuardMode string

const (
	// GuardTemplate skips a template only when the period already holds an
	// entry with the same template key.
	GuardTemplate GuardMode = "template"
	// GuardPeriod skips the whole period as soon as it holds any income or
	// expense entry, recurring or not.
	GuardPeriod GuardMode = "period"
)

// ParseGuardMode validates a guard mode name.
func ParseGuardMode(s string) (GuardMode, error) {
	switch GuardMode(strings.ToLower(strings.TrimSpace(s))) {
	case GuardTemplate:
		return GuardTemplate, nil
	case GuardPeriod:
		return GuardPeriod, nil
	}
	return "", fmt.Errorf("unknown rollover guard %q: must be %q or %q", s, GuardTemplate, GuardPeriod)
}

// TemplateKey identifies a recurring template.
type TemplateKey struct {
	OwnerID  string
	Name     string
	Category core.Category
}

// String is the stable form used as a storage claim key.
func (k TemplateKey) String() string {
	if k.OwnerID == "" && k.Category == "" {
		return k.Name
	}
	return k.OwnerID + "|" + string(k.Category) + "|" + k.Name
}

// TemplateKeyFunc derives the template key of an entry.
type TemplateKeyFunc func(core.Entry) TemplateKey

// KeyByOwnerNameCategory keys templates by owner, name and category.
func KeyByOwnerNameCategory(e core.Entry) TemplateKey {
	return TemplateKey{OwnerID: e.OwnerID, Name: e.Name, Category: e.Category}
}

// KeyByName keys templates by name alone, so an income and an expense with
// the same name collapse into one template.
func KeyByName(e core.Entry) TemplateKey {
	return TemplateKey{Name: e.Name}
}

// Template is the representative entry of a recurring template.
type Template struct {
	Key   TemplateKey
	Entry core.Entry
}

// RolloverEngine materialises recurring templates into a new period. It holds
// configuration only; every call works on the snapshot it is given.
type RolloverEngine struct {
	guard       GuardMode
	key         TemplateKeyFunc
	preferFirst bool
	newID       func(name string, p core.PeriodKey) string
}

// RolloverOption configures a RolloverEngine.
type RolloverOption func(*RolloverEngine)

// WithGuard sets the guard mode.
func WithGuard(m GuardMode) RolloverOption {
	return func(r *RolloverEngine) { r.guard = m }
}

// WithLegacyTemplates keys templates by name and keeps the first encountered
// entry as representative instead of the most recent one.
func WithLegacyTemplates() RolloverOption {
	return func(r *RolloverEngine) {
		r.key = KeyByName
		r.preferFirst = true
	}
}

// WithIDGenerator replaces the id generator. Generated ids that collide with
// existing ones are retried.
func WithIDGenerator(fn func(name string, p core.PeriodKey) string) RolloverOption {
	return func(r *RolloverEngine) { r.newID = fn }
}

// NewRolloverEngine returns an engine with the per-template guard, templates
// keyed by owner, name and category, and most-recent representatives.
func NewRolloverEngine(opts ...RolloverOption) *RolloverEngine {
	r := &RolloverEngine{
		guard: GuardTemplate,
		key:   KeyByOwnerNameCategory,
		newID: defaultEntryID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultEntryID(name string, p core.PeriodKey) string {
	return fmt.Sprintf("%s_%s_%s", name, p, uuid.NewString())
}

// Guard returns the configured guard mode.
func (r *RolloverEngine) Guard() GuardMode { return r.guard }

// KeyOf returns the claim key of an entry under this engine's template keying.
func (r *RolloverEngine) KeyOf(e core.Entry) string { return r.key(e).String() }

// Templates resolves one representative per template key from every
// recurring income and expense entry. Templates are returned in order of
// first appearance. The representative is the most recently dated entry,
// ties going to the one later in the history; legacy mode keeps the first.
func (r *RolloverEngine) Templates(s core.Snapshot) []Template {
	var out []Template
	index := make(map[TemplateKey]int)
	for _, e := range s.Flows() {
		if !e.Recurring {
			continue
		}
		k := r.key(e)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, Template{Key: k, Entry: e})
			continue
		}
		if r.preferFirst {
			continue
		}
		if !e.Date.Before(out[i].Entry.Date.Time) {
			out[i].Entry = e
		}
	}
	return out
}

// Rollover creates one entry dated on the 1st of asOf's month for every
// template not yet materialised there. The input snapshot is never modified;
// when nothing is due it is returned as is with no created entries.
func (r *RolloverEngine) Rollover(s core.Snapshot, asOf time.Time) (core.Snapshot, []core.Entry) {
	current := core.PeriodAt(asOf)
	inPeriod := InPeriod(current)

	materialised := make(map[TemplateKey]struct{})
	for _, e := range s.Flows() {
		if !inPeriod(e) {
			continue
		}
		if r.guard == GuardPeriod {
			return s, []core.Entry{}
		}
		materialised[r.key(e)] = struct{}{}
	}

	templates := r.Templates(s)
	created := make([]core.Entry, 0, len(templates))
	if len(templates) == 0 {
		return s, created
	}

	out := s.Clone()
	ids := s.IDs()
	for _, t := range templates {
		if _, done := materialised[t.Key]; done {
			continue
		}
		e := t.Entry
		e.ID = r.uniqueID(e.Name, current, ids)
		e.Date = current.FirstDay()
		e.Recurring = true
		ids[e.ID] = struct{}{}

		if e.Category == core.CategoryIncome {
			out.Income = append(out.Income, e)
		} else {
			out.Expenses = append(out.Expenses, e)
		}
		created = append(created, e)
	}
	if len(created) == 0 {
		return s, created
	}
	return out, created
}

func (r *RolloverEngine) uniqueID(name string, p core.PeriodKey, taken map[string]struct{}) string {
	id := r.newID(name, p)
	for n := 1; ; n++ {
		if _, dup := taken[id]; !dup {
			return id
		}
		id = fmt.Sprintf("%s-%d", r.newID(name, p), n)
	}
}

// Plan tags created entries with their claim keys for a store commit.
func (r *RolloverEngine) Plan(ownerID string, asOf time.Time, created []core.Entry) core.RolloverBatch {
	batch := core.RolloverBatch{
		OwnerID:     ownerID,
		Period:      core.PeriodAt(asOf),
		PeriodLevel: r.guard == GuardPeriod,
		Items:       make([]core.Materialization, 0, len(created)),
	}
	for _, e := range created {
		batch.Items = append(batch.Items, core.Materialization{TemplateKey: r.KeyOf(e), Entry: e})
	}
	return batch
}

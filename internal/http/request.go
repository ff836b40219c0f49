package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finmate/internal/core"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return badRequest{"could not read request body"}
	}
	if len(body) > maxBodyBytes {
		return badRequest{"request body too large"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest{"request body is empty"}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return badRequest{fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return badRequest{"unexpected data after JSON object"}
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// amountField accepts an amount as a JSON string ("12,50") or number (12.5).
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		s = n.String()
	}
	*a = amountField(s)
	return nil
}

// entryRequest is the body of POST /api/entries.
type entryRequest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Amount      amountField `json:"amount"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Date        string      `json:"date"`
	Recurring   bool        `json:"recurring"`
}

// toEntry validates the request fields and builds an entry for ownerID. A
// missing date means today and a missing id gets a fresh UUID.
func (req entryRequest) toEntry(ownerID string, now time.Time) (core.Entry, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Entry{}, err
	}
	cat, err := core.ParseCategory(sanitizeInput(req.Category))
	if err != nil {
		return core.Entry{}, err
	}
	date := core.DateOf(now)
	if s := strings.TrimSpace(req.Date); s != "" {
		if date, err = core.ParseDate(s); err != nil {
			return core.Entry{}, err
		}
	}
	id := sanitizeInput(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	e := core.Entry{
		ID:          id,
		OwnerID:     ownerID,
		Name:        sanitizeInput(req.Name),
		Amount:      amount,
		Category:    cat,
		Subcategory: sanitizeInput(req.Subcategory),
		Date:        date,
		Recurring:   req.Recurring,
	}
	return e, e.Validate()
}

// obligationRequest is the body of POST /api/obligations.
type obligationRequest struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Amount  amountField `json:"amount"`
	DueDate int         `json:"dueDate"`
	IsPaid  bool        `json:"isPaid"`
}

func (req obligationRequest) toObligation(ownerID string) (core.Obligation, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Obligation{}, err
	}
	id := sanitizeInput(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	o := core.Obligation{
		ID:      id,
		OwnerID: ownerID,
		Name:    sanitizeInput(req.Name),
		Amount:  amount,
		DueDay:  req.DueDate,
		IsPaid:  req.IsPaid,
	}
	return o, o.Validate()
}

type paidRequest struct {
	IsPaid *bool `json:"isPaid"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

// pathID returns the unescaped {id} route variable. The router matches the
// encoded path, so ids containing "/" arrive as %2F.
func pathID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil || strings.TrimSpace(id) == "" {
		return "", badRequest{"invalid id in path"}
	}
	return id, nil
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest{fmt.Sprintf("invalid %s %q: must be an integer", key, v)}
	}
	return n, nil
}

// queryPeriod reads ?period=YYYY-MM, defaulting to the period of now.
func queryPeriod(r *http.Request, now time.Time) (core.PeriodKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.PeriodAt(now), nil
	}
	p, err := core.ParsePeriodKey(v)
	if err != nil {
		return "", badRequest{fmt.Sprintf("invalid period %q: expected YYYY-MM", v)}
	}
	return p, nil
}

// queryBucket reads ?bucket=, defaulting to def.
func queryBucket(r *http.Request, def core.Bucket) (core.Bucket, error) {
	v := strings.TrimSpace(r.URL.Query().Get("bucket"))
	if v == "" {
		return def, nil
	}
	b, err := core.ParseBucket(v)
	if err != nil {
		return 0, badRequest{err.Error()}
	}
	return b, nil
}

package http

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finmate/internal/core"

	"github.com/gorilla/mux"
)

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Rent  ":        "Rent",
		"Lu\x00nch":       "Lunch",
		"tab\tkept":       "tab\tkept",
		"\x1b[31mred\x07": "[31mred",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"trailing data", `{"name":"x"}{"name":"y"}`, true},
		{"unknown field", `{"other":1}`, true},
		{"not json", `name=x`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Name string `json:"name"`
			}
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			err := decodeJSON(r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && statusFor(err) != 400 {
				t.Errorf("status = %d, want 400", statusFor(err))
			}
		})
	}
}

func TestEntryRequestToEntry(t *testing.T) {
	now := time.Date(2025, 3, 9, 22, 0, 0, 0, time.UTC)
	req := entryRequest{Name: " Gym ", Amount: "30,5", Category: "expense", Subcategory: "Health", Recurring: true}

	e, err := req.toEntry("u1", now)
	if err != nil {
		t.Fatalf("toEntry: %v", err)
	}
	if e.ID == "" || e.OwnerID != "u1" || e.Name != "Gym" || e.Date.String() != "2025-03-09" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Amount.String() != "30.5" || !e.Recurring || e.Bucket() != core.BucketExpenses {
		t.Fatalf("unexpected entry %+v", e)
	}

	req.ID = "fixed"
	if e, _ := req.toEntry("u1", now); e.ID != "fixed" {
		t.Errorf("id = %q, want fixed", e.ID)
	}

	req.Category = "crypto"
	_, err = req.toEntry("u1", now)
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("expected category validation error, got %v", err)
	}
}

func TestQueryHelpers(t *testing.T) {
	now := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)

	r := httptest.NewRequest("GET", "/?offset=-2&period=2024-11&bucket=Assets", nil)
	if n, err := queryInt(r, "offset", 0); err != nil || n != -2 {
		t.Errorf("queryInt = %d, %v", n, err)
	}
	if p, err := queryPeriod(r, now); err != nil || p != "2024-11" {
		t.Errorf("queryPeriod = %s, %v", p, err)
	}
	if b, err := queryBucket(r, core.BucketExpenses); err != nil || b != core.BucketAssets {
		t.Errorf("queryBucket = %v, %v", b, err)
	}

	empty := httptest.NewRequest("GET", "/", nil)
	if n, _ := queryInt(empty, "offset", 3); n != 3 {
		t.Errorf("default offset = %d, want 3", n)
	}
	if p, _ := queryPeriod(empty, now); p != "2025-02" {
		t.Errorf("default period = %s, want 2025-02", p)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"e1", "e1", false},
		{"Rent%2FUtilities_2025-02_x", "Rent/Utilities_2025-02_x", false},
		{"Caf%C3%A9", "Café", false},
		{"%zz", "", true},
		{"%20", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest("DELETE", "/", nil), map[string]string{"id": tt.raw})
			got, err := pathID(r)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("pathID(%q) = %q, %v", tt.raw, got, err)
			}
		})
	}
}

func TestObligationRequest(t *testing.T) {
	o, err := obligationRequest{Name: " Gym ", Amount: "35", DueDate: 10}.toObligation("u1")
	if err != nil {
		t.Fatalf("toObligation: %v", err)
	}
	if o.ID == "" || o.Name != "Gym" || o.OwnerID != "u1" || o.DueDay != 10 {
		t.Fatalf("unexpected obligation %+v", o)
	}

	_, err = obligationRequest{Name: "Gym", Amount: "abc", DueDate: 10}.toObligation("u1")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

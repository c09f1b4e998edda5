package dataset

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-playground/pkg/errors"
)

func TestDefaultRegistryOrder(t *testing.T) {
	reg, err := NewRegistry(DefaultDescriptors())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ids := reg.IDs()
	want := []CollectionID{Users, Posts, Tasks}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
	if reg.Default() != Users {
		t.Errorf("default = %q", reg.Default())
	}
}

func TestRegistryParse(t *testing.T) {
	reg, _ := NewRegistry(DefaultDescriptors())
	tests := []struct {
		in      string
		want    CollectionID
		wantErr bool
	}{
		{"users", Users, false},
		{"posts", Posts, false},
		{"tasks", Tasks, false},
		{"Users", "", true},
		{"", "", true},
		{"comments", "", true},
	}
	for _, tt := range tests {
		got, err := reg.Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrUnknownCollection) {
				t.Errorf("Parse(%q) err = %v, want ErrUnknownCollection", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Descriptor{
		{Name: Users, SourceFile: "users.json"},
		{Name: Users, SourceFile: "other.json"},
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFromConfigGrowsTheSet(t *testing.T) {
	cfg := config.Default().Fixtures
	cfg.Datasets = append(cfg.Datasets, config.Dataset{Name: "comments", File: "comments.json"})
	reg, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, err := reg.Parse("comments"); err != nil {
		t.Errorf("configured collection rejected: %v", err)
	}
	descs := reg.Descriptors()
	if descs[3].SourceFile != "comments.json" {
		t.Errorf("descriptor = %+v", descs[3])
	}
}

func TestDocumentKey(t *testing.T) {
	var fromJSON Document
	if err := json.Unmarshal([]byte(`{"id": 1, "name": "Alice"}`), &fromJSON); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		doc    Document
		want   string
		wantOK bool
	}{
		{"json number", fromJSON, "1", true},
		{"string", Document{"id": "u-7"}, "u-7", true},
		{"int", Document{"id": 12}, "12", true},
		{"fractional", Document{"id": 1.5}, "", false},
		{"empty string", Document{"id": ""}, "", false},
		{"missing", Document{"name": "x"}, "", false},
		{"object", Document{"id": map[string]any{}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.doc.Key("id")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Key = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
	if fromJSON.ID() != "1" {
		t.Errorf("ID() = %q", fromJSON.ID())
	}
}

func TestValidate(t *testing.T) {
	docs := []Document{
		{"id": 1},
		{"name": "no id"},
		nil,
		{"id": 1},
	}
	err := Validate(docs, "id")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(vErr.Fields) != 2 {
		t.Errorf("fields = %v", vErr.Fields)
	}
	if !strings.Contains(err.Error(), "documents[1]") || !strings.Contains(err.Error(), "documents[2]") {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Error("validation errors should match ErrInvalidInput")
	}
	if err := Validate([]Document{{"id": "a"}, {"id": "a"}}, "id"); err != nil {
		t.Errorf("repeated keys should be accepted: %v", err)
	}
}

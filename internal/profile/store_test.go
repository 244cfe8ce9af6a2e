// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package profile

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trialscout/pkg/types"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "profiles.db")
	store, err := NewStore(types.ProfileConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestPutAndGet(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	saved, err := store.Put(ctx, types.Profile{
		CallerID:   " alice ",
		Conditions: []string{"Diabetes", " diabetes ", "Asthma", ""},
		Location:   &types.Location{City: "Boston", Country: "US"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.CallerID != "alice" {
		t.Errorf("caller id = %q, want alice", saved.CallerID)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got.Conditions, ",") != "Diabetes,Asthma" {
		t.Errorf("conditions = %v, want [Diabetes Asthma]", got.Conditions)
	}
	if got.Location == nil || got.Location.City != "Boston" || got.Location.Country != "US" {
		t.Errorf("location = %+v", got.Location)
	}
	if !got.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, saved.UpdatedAt)
	}
}

func TestPutReplaces(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, types.Profile{CallerID: "bob", Conditions: []string{"COPD"}, Location: &types.Location{City: "Leeds"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(ctx, types.Profile{CallerID: "bob", Conditions: []string{"Migraine"}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Conditions) != 1 || got.Conditions[0] != "Migraine" {
		t.Errorf("conditions = %v", got.Conditions)
	}
	if got.Location != nil {
		t.Errorf("location = %+v, want nil", got.Location)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Get(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutRequiresCallerID(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Put(context.Background(), types.Profile{CallerID: "  "})
	var ce *types.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, types.Profile{CallerID: "carol", Conditions: []string{"Epilepsy"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if err := store.Delete(ctx, "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	store, path := testStore(t)
	if _, err := store.Put(context.Background(), types.Profile{CallerID: "dave", Conditions: []string{"Stroke"}}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewStore(types.ProfileConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "dave")
	if err != nil {
		t.Fatal(err)
	}
	if got.Conditions[0] != "Stroke" {
		t.Errorf("conditions = %v", got.Conditions)
	}
}

func TestListAndExportYAML(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"zed", "amy"} {
		if _, err := store.Put(ctx, types.Profile{CallerID: id, Conditions: []string{"Asthma"}}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].CallerID != "amy" {
		t.Fatalf("list = %+v", list)
	}

	var buf bytes.Buffer
	if err := store.ExportYAML(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	var exported []types.Profile
	if err := yaml.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("export is not valid YAML: %v", err)
	}
	if len(exported) != 2 || exported[1].CallerID != "zed" {
		t.Errorf("exported = %+v", exported)
	}
}

func TestExportYAMLEmpty(t *testing.T) {
	store, _ := testStore(t)
	var buf bytes.Buffer
	if err := store.ExportYAML(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q", buf.String())
	}
}

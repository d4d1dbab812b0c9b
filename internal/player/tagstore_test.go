package player

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/database"
)

func newStore(t *testing.T) *TagStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "hearo.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewTagStore(db)
	if err != nil {
		t.Fatalf("NewTagStore() error = %v", err)
	}
	return store
}

func TestTagStore_ResolveUnknown(t *testing.T) {
	store := newStore(t)

	_, err := store.Resolve("04A1B2C3")
	if !errors.Is(err, ErrTagUnknown) {
		t.Errorf("Resolve() error = %v, want ErrTagUnknown", err)
	}
}

func TestTagStore_PutResolveProgress(t *testing.T) {
	store := newStore(t)

	m := TagMapping{UID: "04A1B2C3", PlaylistURI: "spotify:playlist:abc"}
	if err := store.Put(m); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Resolve("04A1B2C3")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.PlaylistURI != "spotify:playlist:abc" || got.LastTrack != "" || got.LastPosMS != 0 {
		t.Errorf("Resolve() = %+v, want fresh mapping", got)
	}

	if err := store.SaveProgress("04A1B2C3", "spotify:track:xyz", 42000); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}
	got, err = store.Resolve("04A1B2C3")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.LastTrack != "spotify:track:xyz" || got.LastPosMS != 42000 {
		t.Errorf("Resolve() after progress = %+v", got)
	}
}

func TestTagStore_PutReplacesExisting(t *testing.T) {
	store := newStore(t)

	if err := store.Put(TagMapping{UID: "07FF", PlaylistURI: "spotify:playlist:old"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(TagMapping{UID: "07FF", PlaylistURI: "spotify:playlist:new"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Resolve("07FF")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.PlaylistURI != "spotify:playlist:new" {
		t.Errorf("PlaylistURI = %q, want replacement", got.PlaylistURI)
	}
}

func TestTagStore_NegativePositionClamped(t *testing.T) {
	store := newStore(t)

	if err := store.Put(TagMapping{UID: "0BEE", PlaylistURI: "spotify:playlist:p"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.SaveProgress("0BEE", "spotify:track:t", -500); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	got, err := store.Resolve("0BEE")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.LastPosMS != 0 {
		t.Errorf("LastPosMS = %d, want clamped to 0", got.LastPosMS)
	}
}

func TestResumePoint(t *testing.T) {
	tests := []struct {
		name    string
		mapping TagMapping
		wantURI string
		wantPos int
	}{
		{"fresh tag starts playlist", TagMapping{PlaylistURI: "spotify:playlist:p"}, "spotify:playlist:p", 0},
		{"saved position resumes track", TagMapping{PlaylistURI: "spotify:playlist:p", LastTrack: "spotify:track:t", LastPosMS: 9000}, "spotify:track:t", 9000},
		{"zero position restarts playlist", TagMapping{PlaylistURI: "spotify:playlist:p", LastTrack: "spotify:track:t"}, "spotify:playlist:p", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, pos := resumePoint(tt.mapping)
			if uri != tt.wantURI || pos != tt.wantPos {
				t.Errorf("resumePoint() = (%q, %d), want (%q, %d)", uri, pos, tt.wantURI, tt.wantPos)
			}
		})
	}
}

package library

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kiwi/internal/filesystem"
)

func testRetry() filesystem.RetryConfig {
	cfg := filesystem.DefaultRetryConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

// writeItem creates <dir>/<id>.info with a media file and sidecar.
func writeItem(t *testing.T, dir, id, mediaName, sidecar string) Item {
	t.Helper()
	itemDir := filepath.Join(dir, id+ItemSuffix)
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if mediaName != "" {
		if err := os.WriteFile(filepath.Join(itemDir, mediaName), []byte("media"), 0o644); err != nil {
			t.Fatalf("write media: %v", err)
		}
	}
	if sidecar != "" {
		if err := os.WriteFile(filepath.Join(itemDir, SidecarName), []byte(sidecar), 0o644); err != nil {
			t.Fatalf("write sidecar: %v", err)
		}
	}
	return Item{ID: id, Dir: itemDir}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("flat layout", func(t *testing.T) {
		root := t.TempDir()
		lib, err := Open(ctx, root, testRetry())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if lib.ItemsDir() != root {
			t.Errorf("ItemsDir = %q, want %q", lib.ItemsDir(), root)
		}
	})

	t.Run("images layout", func(t *testing.T) {
		root := t.TempDir()
		images := filepath.Join(root, ImagesDirName)
		if err := os.Mkdir(images, 0o755); err != nil {
			t.Fatal(err)
		}
		lib, err := Open(ctx, root, testRetry())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if lib.ItemsDir() != images {
			t.Errorf("ItemsDir = %q, want %q", lib.ItemsDir(), images)
		}
	})

	tests := []struct {
		name string
		root func(t *testing.T) string
	}{
		{"empty path", func(_ *testing.T) string { return "" }},
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{"file", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "file")
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				t.Fatal(err)
			}
			return p
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.root(t), testRetry())
			if !errors.Is(err, ErrLibraryUnreachable) {
				t.Errorf("Open error = %v, want ErrLibraryUnreachable", err)
			}
		})
	}
}

func TestItems(t *testing.T) {
	root := t.TempDir()
	writeItem(t, root, "B", "b.jpg", "{}")
	writeItem(t, root, "A", "a.png", "{}")
	// Ignored entries
	if err := os.Mkdir(filepath.Join(root, ".hidden.info"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "notanitem"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "C.info"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := Open(context.Background(), root, testRetry())
	if err != nil {
		t.Fatal(err)
	}
	items, err := lib.Items(context.Background())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].ID != "A" || items[1].ID != "B" {
		t.Errorf("items = %+v, want sorted A, B", items)
	}
	if items[0].SidecarPath() != filepath.Join(root, "A.info", SidecarName) {
		t.Errorf("SidecarPath = %q", items[0].SidecarPath())
	}
}

func TestMediaFile(t *testing.T) {
	root := t.TempDir()
	lib, err := Open(context.Background(), root, testRetry())
	if err != nil {
		t.Fatal(err)
	}

	it := writeItem(t, root, "X", "photo.jpg", "{}")
	if err := os.WriteFile(filepath.Join(it.Dir, "photo_thumbnail.png"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(it.Dir, ".DS_Store"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := lib.MediaFile(context.Background(), it)
	if err != nil {
		t.Fatalf("MediaFile: %v", err)
	}
	if got != filepath.Join(it.Dir, "photo.jpg") {
		t.Errorf("MediaFile = %q", got)
	}

	empty := writeItem(t, root, "Y", "", "{}")
	if _, err := lib.MediaFile(context.Background(), empty); !errors.Is(err, ErrNoMediaFile) {
		t.Errorf("MediaFile on sidecar-only folder = %v, want ErrNoMediaFile", err)
	}
}

func TestParseMTimeMap(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    map[string]int64
		wantErr bool
	}{
		{"integers", `{"A": 1700000000000, "B": 1700000000500}`, map[string]int64{"A": 1700000000000, "B": 1700000000500}, false},
		{"float value", `{"A": 1700000000000.0}`, map[string]int64{"A": 1700000000000}, false},
		{"empty", `{}`, map[string]int64{}, false},
		{"bad values skipped", `{"A": 1700000000000, "B": "oops", "C": true, "D": null, "E": [1]}`, map[string]int64{"A": 1700000000000}, false},
		{"not an object", `[1,2]`, nil, true},
		{"garbage", `nope`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMTimeMap([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for id, ms := range tt.want {
				if got[id].UnixMilli() != ms {
					t.Errorf("%s = %d, want %d", id, got[id].UnixMilli(), ms)
				}
			}
		})
	}
}

func TestLoadMTimeMap(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		lib, err := Open(ctx, t.TempDir(), testRetry())
		if err != nil {
			t.Fatal(err)
		}
		m, err := lib.LoadMTimeMap(ctx)
		if err != nil || len(m) != 0 {
			t.Errorf("LoadMTimeMap = %v, %v; want empty, nil", m, err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, MTimeMapName), []byte("{broken"), 0o644); err != nil {
			t.Fatal(err)
		}
		lib, err := Open(ctx, root, testRetry())
		if err != nil {
			t.Fatal(err)
		}
		m, err := lib.LoadMTimeMap(ctx)
		if err != nil || len(m) != 0 {
			t.Errorf("LoadMTimeMap = %v, %v; want empty, nil", m, err)
		}
	})

	t.Run("one bad entry", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, MTimeMapName), []byte(`{"A": 1000, "B": "oops"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		lib, err := Open(ctx, root, testRetry())
		if err != nil {
			t.Fatal(err)
		}
		m, err := lib.LoadMTimeMap(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(m) != 1 || !m["A"].Equal(time.UnixMilli(1000)) {
			t.Errorf("LoadMTimeMap = %v, want only A", m)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, MTimeMapName), []byte(`{"A": 1000}`), 0o644); err != nil {
			t.Fatal(err)
		}
		lib, err := Open(ctx, root, testRetry())
		if err != nil {
			t.Fatal(err)
		}
		m, err := lib.LoadMTimeMap(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !m["A"].Equal(time.UnixMilli(1000)) {
			t.Errorf("A = %v", m["A"])
		}
	})
}

func TestSidecarExtractor(t *testing.T) {
	root := t.TempDir()
	ext := NewSidecarExtractor(testRetry())

	t.Run("fills defaults from media file", func(t *testing.T) {
		it := writeItem(t, root, "S1", "sunset.JPG", `{"id":"S1","tags":["a"]}`)
		rec, err := ext.Extract(context.Background(), filepath.Join(it.Dir, "sunset.JPG"))
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if rec.Name != "sunset" || rec.Ext != "jpg" {
			t.Errorf("name/ext = %q/%q", rec.Name, rec.Ext)
		}
		if rec.Size == nil || *rec.Size != int64(len("media")) {
			t.Errorf("size = %v", rec.Size)
		}
	})

	t.Run("sidecar values win", func(t *testing.T) {
		it := writeItem(t, root, "S2", "x.png", `{"name":"Named","ext":"png","size":42}`)
		rec, err := ext.Extract(context.Background(), filepath.Join(it.Dir, "x.png"))
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if rec.Name != "Named" || *rec.Size != 42 {
			t.Errorf("record = %+v", rec)
		}
	})

	for name, body := range map[string]string{
		"missing":   "",
		"malformed": `{"name": `,
		"array":     `[]`,
	} {
		t.Run(name+" sidecar", func(t *testing.T) {
			it := writeItem(t, root, "bad-"+name, "x.png", body)
			_, err := ext.Extract(context.Background(), filepath.Join(it.Dir, "x.png"))
			if !errors.Is(err, ErrSidecarUnavailable) {
				t.Errorf("Extract error = %v, want ErrSidecarUnavailable", err)
			}
		})
	}
}

func TestImageProbe(t *testing.T) {
	root := t.TempDir()
	it := writeItem(t, root, "P", "", `{"name":"pic","ext":"png"}`)

	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	img.Set(0, 0, color.White)
	f, err := os.Create(filepath.Join(it.Dir, "pic.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	probe := NewImageProbe(NewSidecarExtractor(testRetry()), testRetry())
	rec, err := probe.Extract(context.Background(), filepath.Join(it.Dir, "pic.png"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Width == nil || rec.Height == nil || *rec.Width != 7 || *rec.Height != 3 {
		t.Errorf("dimensions = %v x %v, want 7 x 3", rec.Width, rec.Height)
	}

	// Undecodable image keeps the record without dimensions.
	bad := writeItem(t, root, "Q", "broken.png", `{"ext":"png"}`)
	rec, err = probe.Extract(context.Background(), filepath.Join(bad.Dir, "broken.png"))
	if err != nil {
		t.Fatalf("Extract on broken image: %v", err)
	}
	if rec.Width != nil {
		t.Errorf("width = %v, want nil", *rec.Width)
	}

	// A file that cannot be opened is an extraction failure.
	gone := writeItem(t, root, "S", "", `{"ext":"png"}`)
	if err := os.Symlink(filepath.Join(root, "missing.png"), filepath.Join(gone.Dir, "gone.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := probe.Extract(context.Background(), filepath.Join(gone.Dir, "gone.png")); !errors.Is(err, ErrMediaUnreadable) {
		t.Errorf("Extract on unreadable image = %v, want ErrMediaUnreadable", err)
	}

	// Sidecar dimensions are not overwritten.
	sized := writeItem(t, root, "R", "", `{"ext":"png","width":100,"height":50}`)
	if err := os.Link(filepath.Join(it.Dir, "pic.png"), filepath.Join(sized.Dir, "pic.png")); err != nil {
		t.Skipf("hard links unsupported: %v", err)
	}
	rec, err = probe.Extract(context.Background(), filepath.Join(sized.Dir, "pic.png"))
	if err != nil {
		t.Fatal(err)
	}
	if *rec.Width != 100 || *rec.Height != 50 {
		t.Errorf("dimensions = %d x %d, want sidecar 100 x 50", *rec.Width, *rec.Height)
	}
}

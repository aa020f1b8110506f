package indexcodec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"podsearch/internal/searchentry"
	"podsearch/internal/searchindex"
	"podsearch/internal/services"
	"podsearch/internal/testsupport"
)

func sampleIndex(t *testing.T, n int) *searchindex.Index {
	t.Helper()
	ix := searchindex.New()
	for i := 0; i < n; i++ {
		e := searchentry.Entry{
			ID:                            fmt.Sprintf("%d_%d", i%7+1, i*1500),
			Text:                          fmt.Sprintf("segment %d about café economics and episode %d", i, i%7),
			SequentialEpisodeID:           i%7 + 1,
			StartTimeMs:                   int64(i * 1500),
			EndTimeMs:                     int64(i*1500 + 1400),
			EpisodePublishedUnixTimestamp: 1700000000 + int64(i%7)*86400,
		}
		if err := ix.Insert(e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return ix
}

func TestRoundTripEveryCodec(t *testing.T) {
	ix := sampleIndex(t, 2500)
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			codec, err := Lookup(name)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			stats, err := Serialize(context.Background(), ix, codec, &buf, nil)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if stats.Documents != 2500 || stats.EncodedBytes == 0 || stats.CompressedBytes != int64(buf.Len()) {
				t.Fatalf("unexpected stats %+v (written %d)", stats, buf.Len())
			}
			if name != "none" && stats.CompressedBytes >= stats.EncodedBytes {
				t.Fatalf("%s did not compress: %+v", name, stats)
			}

			restored, rstats, err := Deserialize(context.Background(), &buf, nil, nil)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if rstats.EncodedBytes != stats.EncodedBytes || rstats.Codec != name {
				t.Fatalf("read stats %+v, write stats %+v", rstats, stats)
			}
			if !reflect.DeepEqual(restored.Snapshot(), ix.Snapshot()) {
				t.Fatal("documents differ after round trip")
			}
			for _, q := range []string{"cafe", "economics episode", "segment 42"} {
				if !reflect.DeepEqual(restored.Search(q, 10), ix.Search(q, 10)) {
					t.Fatalf("query %q ranks differently after round trip", q)
				}
			}
		})
	}
}

func TestEmptyIndexRoundTrip(t *testing.T) {
	codec, _ := Lookup("zstd")
	var buf bytes.Buffer
	if _, err := Serialize(context.Background(), searchindex.New(), codec, &buf, nil); err != nil {
		t.Fatal(err)
	}
	ix, _, err := Deserialize(context.Background(), &buf, codec, nil)
	if err != nil || ix.Len() != 0 {
		t.Fatalf("got %v docs, err %v", ix, err)
	}
}

func TestDeserializeRejectsCodecMismatch(t *testing.T) {
	gz, _ := Lookup("gzip")
	br, _ := Lookup("brotli")
	var buf bytes.Buffer
	if _, err := Serialize(context.Background(), sampleIndex(t, 3), gz, &buf, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Deserialize(context.Background(), &buf, br, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "nope", "PSIX\x09\x04none", "PSIX\x01\x04zstd" + "not zstd at all"} {
		_, _, err := Deserialize(context.Background(), strings.NewReader(input), nil, nil)
		if !errors.Is(err, ErrCorrupt) || !errors.Is(err, services.ErrDataIntegrity) {
			t.Fatalf("input %q: expected corrupt error, got %v", input, err)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("lz4"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStore()
	codec, _ := Lookup("brotli")
	ix := sampleIndex(t, 40)
	if _, err := Persist(ctx, store, "search-index/show.bin", ix, codec, nil); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	loaded, stats, err := Load(ctx, store, "search-index/show.bin", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 40 || stats.Codec != "brotli" {
		t.Fatalf("loaded %d docs with %+v", loaded.Len(), stats)
	}
}

func TestPersistFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewMemoryStore()
	store.Put("search-index/show.bin", []byte("previous"))
	store.FailSave = func(string) bool { return true }
	codec, _ := Lookup("none")
	if _, err := Persist(ctx, store, "search-index/show.bin", sampleIndex(t, 5), codec, nil); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if got := string(store.Get("search-index/show.bin")); got != "previous" {
		t.Fatalf("previous index replaced: %q", got)
	}
}

func TestSerializeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	codec, _ := Lookup("none")
	var buf bytes.Buffer
	if _, err := Serialize(ctx, sampleIndex(t, 3000), codec, &buf, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

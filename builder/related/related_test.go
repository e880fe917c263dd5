package related

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/quill/builder/cache"
	"github.com/Kush-Singh-26/quill/builder/metrics"
	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/search"
	"github.com/Kush-Singh-26/quill/builder/testutil"
)

func scenarioIndex(t *testing.T) (*search.Index, []models.ProcessedPost) {
	t.Helper()
	posts := testutil.ScenarioProcessed()
	idx, _, err := search.Build(posts, search.DefaultOptions(false))
	if err != nil {
		t.Fatal(err)
	}
	return idx, posts
}

func TestRelatedTo_Scenario(t *testing.T) {
	idx, posts := scenarioIndex(t)
	a := posts[0]

	got := Permalinks(RelatedTo(idx, a, 3))
	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("RelatedTo() = %v, want 1..3 posts", got)
	}
	allowed := map[string]bool{"/b/": true, "/c/": true, "/d/": true}
	for _, p := range got {
		if !allowed[p] {
			t.Errorf("RelatedTo() returned %s, want a subset of b, c, d", p)
		}
	}
}

func TestRelatedTo_SelfExclusionAndBounds(t *testing.T) {
	idx, posts := scenarioIndex(t)

	for _, p := range posts {
		for limit := 0; limit <= 6; limit++ {
			got := RelatedTo(idx, p, limit)
			if len(got) > limit {
				t.Errorf("%s limit %d: got %d posts", p.Permalink, limit, len(got))
			}
			for _, r := range got {
				if r.Permalink == p.Permalink {
					t.Errorf("%s limit %d: result contains the post itself", p.Permalink, limit)
				}
			}
		}
	}
}

func TestRelatedTo_SparseMetadata(t *testing.T) {
	idx, posts := scenarioIndex(t)

	tests := []struct {
		name   string
		mutate func(*models.ProcessedPost)
	}{
		{"no tags", func(p *models.ProcessedPost) { p.Tags = nil }},
		{"empty tags", func(p *models.ProcessedPost) { p.Tags = []string{} }},
		{"no categories", func(p *models.ProcessedPost) { p.Categories = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := posts[0]
			tt.mutate(&p)
			got := RelatedTo(idx, p, 3)
			if got == nil || len(got) != 0 {
				t.Errorf("RelatedTo() = %v, want empty slice", got)
			}
		})
	}
}

func TestRelatedTo_NegativeLimit(t *testing.T) {
	idx, posts := scenarioIndex(t)
	if got := RelatedTo(idx, posts[0], -1); len(got) != 0 {
		t.Errorf("RelatedTo(-1) = %v, want empty", got)
	}
}

func TestRelatedTo_PostOutsideCorpus(t *testing.T) {
	idx, _ := scenarioIndex(t)
	outsider := models.ProcessedPost{
		Title:      "New",
		Permalink:  "/new/",
		Tags:       []string{"azure"},
		Categories: []string{"cloud"},
	}
	if got := RelatedTo(idx, outsider, 3); len(got) != 3 {
		t.Errorf("RelatedTo() = %v, want 3 posts", Permalinks(got))
	}
}

func TestQuery(t *testing.T) {
	p := models.ProcessedPost{Tags: []string{"azure", "bicep"}, Categories: []string{"cloud"}}
	if got := Query(p); got != "azure bicep cloud" {
		t.Errorf("Query() = %q", got)
	}
}

// countingSource returns posts and counts how often it was asked
type countingSource struct {
	posts []models.SourcePost
	calls atomic.Int32
	err   error
}

func (s *countingSource) Posts(context.Context) ([]models.SourcePost, error) {
	s.calls.Add(1)
	return s.posts, s.err
}

func newService(fs afero.Fs, src PostSource, opts search.Options) (*Service, *metrics.BuildMetrics) {
	m := metrics.NewBuildMetrics()
	store := cache.NewStore(fs, ".quill-cache", cache.JSON, testutil.QuietLogger())
	return New(store, opts, cache.CountFingerprinter{}, src, testutil.QuietLogger(), m), m
}

func TestService_BuildsOnce(t *testing.T) {
	src := &countingSource{posts: testutil.ScenarioPosts()}
	svc, _ := newService(afero.NewMemMapFs(), src, search.DefaultOptions(false))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Index(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("post source called %d times, want 1", n)
	}
}

func TestService_CacheHit(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()
	opts := search.DefaultOptions(false)

	first, m1 := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, opts)
	want, err := first.RelatedAll(ctx, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Rebuilt() || m1.Misses(metrics.CacheIndex) != 1 {
		t.Error("first service should build the index")
	}

	second, m2 := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, opts)
	got, err := second.RelatedAll(ctx, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rebuilt() || m2.Hits(metrics.CacheIndex) != 1 {
		t.Error("second service should load the cached index")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cached results differ:\n got %v\nwant %v", got, want)
	}
}

func TestService_StaleOnPostCountChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()
	opts := search.DefaultOptions(false)

	first, _ := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, opts)
	if _, err := first.Index(ctx); err != nil {
		t.Fatal(err)
	}

	fewer := testutil.ScenarioPosts()[:4]
	second, _ := newService(fs, &countingSource{posts: fewer}, opts)
	idx, err := second.Index(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Rebuilt() {
		t.Error("post count change should force a rebuild")
	}
	if idx.Len() != 4 {
		t.Errorf("index has %d posts, want 4", idx.Len())
	}
}

func TestService_StaleOnOptionsChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	first, _ := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, search.DefaultOptions(false))
	if _, err := first.Index(ctx); err != nil {
		t.Fatal(err)
	}

	second, _ := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, search.DefaultOptions(true))
	if _, err := second.Index(ctx); err != nil {
		t.Fatal(err)
	}
	if !second.Rebuilt() {
		t.Error("options change should force a rebuild")
	}
}

func TestService_HashFingerprintStaleOnMetadataEdit(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()
	opts := search.DefaultOptions(false)
	hashed := func(posts []models.SourcePost) *Service {
		store := cache.NewStore(fs, ".quill-cache", cache.JSON, testutil.QuietLogger())
		return New(store, opts, cache.HashFingerprinter{}, &countingSource{posts: posts}, testutil.QuietLogger(), metrics.NewBuildMetrics())
	}

	first := hashed(testutil.ScenarioPosts())
	if _, err := first.Index(ctx); err != nil {
		t.Fatal(err)
	}

	same := hashed(testutil.ScenarioPosts())
	if _, err := same.Index(ctx); err != nil {
		t.Fatal(err)
	}
	if same.Rebuilt() {
		t.Error("unchanged corpus should load the cached index")
	}

	edited := testutil.ScenarioPosts()
	edited[1].Permalink = "/b-renamed/"
	edited[1].Tags = []string{"gcp", "serverless"}
	second := hashed(edited)
	if _, err := second.Index(ctx); err != nil {
		t.Fatal(err)
	}
	if !second.Rebuilt() {
		t.Error("permalink and tag edit should force a rebuild")
	}
	if _, ok, _ := second.Find(ctx, "/b/"); ok {
		t.Error("old permalink still served after rebuild")
	}
	p, ok, err := second.Find(ctx, "/b-renamed/")
	if err != nil || !ok || strings.Join(p.Tags, ",") != "gcp,serverless" {
		t.Errorf("Find(/b-renamed/) = %v, %v, %v", p, ok, err)
	}
}

func TestService_CorruptCacheMatchesNoCache(t *testing.T) {
	ctx := context.Background()
	opts := search.DefaultOptions(false)

	clean, _ := newService(afero.NewMemMapFs(), &countingSource{posts: testutil.ScenarioPosts()}, opts)
	want, err := clean.RelatedAll(ctx, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	corrupt := []struct {
		name  string
		posts string
		index string
	}{
		{"garbage", "{not json", "\x00\x01"},
		{"valid posts, broken index", "", `{"schemaVersion":3,"configHash":"x","fingerprint":"count:5","postCount":5,"index":null}`},
		{"duplicate permalinks", `{"schemaVersion":2,"postCount":2,"fingerprint":"count:5","posts":[` +
			`{"title":"a","tags":[],"categories":[],"permalink":"/a/"},{"title":"b","tags":[],"categories":[],"permalink":"/a/"}]}`, ""},
	}

	for _, tt := range corrupt {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			store := cache.NewStore(fs, ".quill-cache", cache.JSON, testutil.QuietLogger())
			if tt.posts != "" {
				testutil.WriteTestFile(fs, store.Path(cache.NamespacePosts), []byte(tt.posts))
			}
			if tt.index != "" {
				testutil.WriteTestFile(fs, store.Path(cache.NamespaceIndex), []byte(tt.index))
			}

			svc, _ := newService(fs, &countingSource{posts: testutil.ScenarioPosts()}, opts)
			got, err := svc.RelatedAll(ctx, 3, 1)
			if err != nil {
				t.Fatalf("RelatedAll() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("corrupt cache changed output:\n got %v\nwant %v", got, want)
			}
		})
	}
}

type readOnlyFs struct {
	afero.Fs
}

func (readOnlyFs) Rename(string, string) error {
	return errors.New("permission denied")
}

func TestService_WriteFailureIsNotFatal(t *testing.T) {
	svc, _ := newService(readOnlyFs{afero.NewMemMapFs()}, &countingSource{posts: testutil.ScenarioPosts()}, search.DefaultOptions(false))
	entries, err := svc.RelatedAll(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("RelatedAll() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("got %d entries, want 5", len(entries))
	}
}

func TestService_SourceErrorIsFatal(t *testing.T) {
	boom := errors.New("missing frontmatter")
	svc, _ := newService(afero.NewMemMapFs(), &countingSource{err: boom}, search.DefaultOptions(false))

	if _, err := svc.Index(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Index() error = %v, want wrapped source error", err)
	}
	if _, err := svc.RelatedTo(context.Background(), models.ProcessedPost{}, 3); err == nil {
		t.Error("RelatedTo() should surface the source error")
	}
}

func TestService_Find(t *testing.T) {
	svc, _ := newService(afero.NewMemMapFs(), &countingSource{posts: testutil.ScenarioPosts()}, search.DefaultOptions(false))
	ctx := context.Background()

	p, ok, err := svc.Find(ctx, "/c/")
	if err != nil || !ok || p.Title != "Cost alerts on Azure" {
		t.Errorf("Find(/c/) = %v, %v, %v", p, ok, err)
	}
	if _, ok, _ := svc.Find(ctx, "/missing/"); ok {
		t.Error("Find() should not find an unknown permalink")
	}
}

func TestService_RelatedAllOrder(t *testing.T) {
	svc, m := newService(afero.NewMemMapFs(), &countingSource{posts: testutil.ScenarioPosts()}, search.DefaultOptions(false))

	entries, err := svc.RelatedAll(context.Background(), 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"/a/", "/b/", "/c/", "/d/", "/e/"} {
		if entries[i].Permalink != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Permalink, want)
		}
		if len(entries[i].Related) > 2 {
			t.Errorf("entries[%d] has %d related posts", i, len(entries[i].Related))
		}
	}
	if m.PostsProcessed() != 5 {
		t.Errorf("PostsProcessed() = %d, want 5", m.PostsProcessed())
	}
}

func TestDocuments_Validate(t *testing.T) {
	valid := &PostsDocument{
		SchemaVersion: cache.PostsSchemaVersion,
		PostCount:     1,
		Fingerprint:   "count:1",
		Posts:         []models.ProcessedPost{{Title: "t", Tags: []string{}, Categories: []string{}, Permalink: "/t/"}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*PostsDocument)
	}{
		{"count mismatch", func(d *PostsDocument) { d.PostCount = 2 }},
		{"missing permalink", func(d *PostsDocument) { d.Posts[0].Permalink = "" }},
		{"nil tags", func(d *PostsDocument) { d.Posts[0].Tags = nil }},
		{"missing fingerprint", func(d *PostsDocument) { d.Fingerprint = "" }},
		{"nil posts", func(d *PostsDocument) { d.Posts = nil; d.PostCount = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := *valid
			doc.Posts = append([]models.ProcessedPost(nil), valid.Posts...)
			tt.mutate(&doc)
			if err := doc.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestIndexDocument_Validate(t *testing.T) {
	posts := testutil.ScenarioProcessed()
	opts := search.DefaultOptions(false)
	_, ser, err := search.Build(posts, opts)
	if err != nil {
		t.Fatal(err)
	}
	valid := IndexDocument{
		SchemaVersion: cache.IndexSchemaVersion,
		ConfigHash:    opts.Hash(),
		Fingerprint:   "count:5",
		PostCount:     len(posts),
		Index:         ser,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*IndexDocument)
	}{
		{"count mismatch", func(d *IndexDocument) { d.PostCount = 4 }},
		{"missing config hash", func(d *IndexDocument) { d.ConfigHash = "" }},
		{"config hash disagrees with options", func(d *IndexDocument) { d.ConfigHash = search.DefaultOptions(true).Hash() }},
		{"nil index", func(d *IndexDocument) { d.Index = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid
			tt.mutate(&doc)
			if err := doc.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

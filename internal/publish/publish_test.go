package publish

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/kiln/internal/build"
	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/bundle"
)

type object struct {
	body         string
	contentType  string
	cacheControl string
	metadata     map[string]string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	order   []string
	failKey string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if key == f.failKey {
		return nil, stderrors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = object{
		body:         string(body),
		contentType:  aws.ToString(in.ContentType),
		cacheControl: aws.ToString(in.CacheControl),
		metadata:     in.Metadata,
	}
	f.order = append(f.order, key)
	return &s3.PutObjectOutput{}, nil
}

func TestPublish(t *testing.T) {
	client := newFakeS3()
	p := New(client, "assets", "bundles")

	res := &bundle.Result{Entry: "main.js", Code: "var a;\n", Hash: bundle.Hash("var a;\n")}
	key, err := p.Publish(context.Background(), "main.1a2b3c4d.js", res)
	if err != nil {
		t.Fatal(err)
	}
	if key != "bundles/main.1a2b3c4d.js" {
		t.Errorf("key = %q", key)
	}

	obj := client.objects["assets/"+key]
	if obj.body != res.Code {
		t.Errorf("body = %q", obj.body)
	}
	if obj.cacheControl != ImmutableCacheControl {
		t.Errorf("Cache-Control = %q", obj.cacheControl)
	}
	if !strings.HasPrefix(obj.contentType, "application/javascript") {
		t.Errorf("Content-Type = %q", obj.contentType)
	}
	if obj.metadata["hash"] != res.Hash || obj.metadata["entry"] != "main.js" {
		t.Errorf("metadata = %v", obj.metadata)
	}
}

func TestPublishSourceMap(t *testing.T) {
	client := newFakeS3()
	p := New(client, "assets", "")

	res := &bundle.Result{
		Entry: "main.js",
		Code:  "var a;\n//# sourceMappingURL=main.js.map\n",
		Map:   `{"version":3}`,
		Hash:  "abc",
	}
	if _, err := p.Publish(context.Background(), "v1/main.abc.js", res); err != nil {
		t.Fatal(err)
	}

	if len(client.order) != 2 || client.order[0] != "assets/v1/main.abc.js.map" {
		t.Fatalf("upload order = %v, map should go first", client.order)
	}
	code := client.objects["assets/v1/main.abc.js"].body
	if !strings.HasSuffix(code, "//# sourceMappingURL=main.abc.js.map\n") {
		t.Errorf("trailer not relinked: %q", code)
	}
	if ct := client.objects["assets/v1/main.abc.js.map"].contentType; !strings.HasPrefix(ct, "application/json") {
		t.Errorf("map Content-Type = %q", ct)
	}
}

func TestPublishError(t *testing.T) {
	client := newFakeS3()
	client.failKey = "assets/main.js"
	p := New(client, "assets", "")

	_, err := p.Publish(context.Background(), "main.js", &bundle.Result{Code: "x"})
	if !errors.HasCode(err, errors.CodePublishFailed) {
		t.Fatalf("err = %v, want %s", err, errors.CodePublishFailed)
	}
	if !strings.Contains(err.Error(), "s3://assets/main.js") {
		t.Errorf("error should name the object: %v", err)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "main.js", "main.js"},
		{"bundles", "main.js", "bundles/main.js"},
		{"bundles/", "/main.js", "bundles/main.js"},
		{"/static/v2", "a/b.js", "static/v2/a/b.js"},
	}
	for _, tt := range tests {
		if got := New(nil, "b", tt.prefix).Key(tt.name); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestPublishBuild(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.SetDir(dir)
	cfg.Bundle.Entries = []string{"main.js"}
	cfg.Bundle.SourceMaps = true
	src := filepath.Join(dir, "src")
	os.MkdirAll(src, 0755)
	os.WriteFile(filepath.Join(src, "main.js"), []byte("export const a = 1;\n"), 0644)

	res, err := build.New(cfg, bundle.NewGenerator(os.DirFS(src)), build.Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	client := newFakeS3()
	keys, err := New(client, "assets", "site").PublishBuild(context.Background(), res, cfg.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}

	f := res.Files[0]
	want := []string{"site/" + f.Map, "site/" + f.Name, "site/manifest.json"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if cc := client.objects["assets/site/manifest.json"].cacheControl; cc != "no-cache" {
		t.Errorf("manifest Cache-Control = %q", cc)
	}
	if h := client.objects["assets/site/"+f.Name].metadata["hash"]; h != f.Hash {
		t.Errorf("hash metadata = %q", h)
	}
}

func TestNewFromConfigNoBucket(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.New())
	if !errors.HasCode(err, errors.CodePublishFailed) {
		t.Errorf("err = %v", err)
	}
}

package crawler

import (
	"net/url"
	"reflect"
	"testing"
)

// TestHTMLExtractor tests link extraction from HTML.
func TestHTMLExtractor(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://example.com/dir/page")
	if err != nil {
		t.Fatalf("failed to parse base: %v", err)
	}

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "anchors in document order",
			html: `<html><body>
				<a href="/first">1</a>
				<p><a href="second">2</a></p>
				<a href="http://other.com/third">3</a>
			</body></html>`,
			want: []string{"/first", "second", "http://other.com/third"},
		},
		{
			name: "area elements",
			html: `<map name="m"><area href="/region" shape="rect"><area shape="default"></map>`,
			want: []string{"/region"},
		},
		{
			name: "trims and drops empty hrefs",
			html: `<a href="  /padded  ">x</a><a href="">y</a><a href="   ">z</a><a>no href</a>`,
			want: []string{"/padded"},
		},
		{
			name: "keeps non-http references for the caller to reject",
			html: `<a href="javascript:void(0)">js</a><a href="mailto:a@example.com">m</a><a href="/ok">ok</a>`,
			want: []string{"javascript:void(0)", "mailto:a@example.com", "/ok"},
		},
		{
			name: "ignores other elements",
			html: `<link href="/style.css"><img src="/img.png"><script src="/app.js"></script><a href="/a">a</a>`,
			want: []string{"/a"},
		},
		{
			name: "implied end tags",
			html: `<ul><li><a href="/one">one</a><li><a href="/two">two</a></ul><div><span>`,
			want: []string{"/one", "/two"},
		},
		{
			name: "no links",
			html: `<html><body><p>nothing here</p></body></html>`,
			want: []string{},
		},
	}

	extractor := NewHTMLExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := extractor.ExtractLinks([]byte(tt.html), base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestHTMLExtractorBase tests that <base href> re-bases relative links.
func TestHTMLExtractorBase(t *testing.T) {
	t.Parallel()

	page, err := url.Parse("http://example.com/dir/page")
	if err != nil {
		t.Fatalf("failed to parse base: %v", err)
	}

	t.Run("absolute base", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><base href="http://example.com/docs/"></head>
			<body><a href="intro">i</a><a href="https://other.com/x">o</a></body></html>`
		got, err := NewHTMLExtractor().ExtractLinks([]byte(html), page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"http://example.com/docs/intro", "https://other.com/x"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("relative base resolved against the page", func(t *testing.T) {
		t.Parallel()

		html := `<base href="/static/"><a href="file.html">f</a>`
		got, err := NewHTMLExtractor().ExtractLinks([]byte(html), page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"http://example.com/static/file.html"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("first base wins", func(t *testing.T) {
		t.Parallel()

		html := `<base href="http://a.example/"><base href="http://b.example/"><a href="x">x</a>`
		got, err := NewHTMLExtractor().ExtractLinks([]byte(html), page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"http://a.example/x"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

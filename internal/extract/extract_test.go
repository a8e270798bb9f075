package extract

import (
	"reflect"
	"testing"

	"github.com/RecoveryAshes/tsarchive/internal/models"
)

const indexPage = `<!DOCTYPE html>
<html><body>
<div class="archiv">
  <a class="teaser-xs__link" href="/inland/beispiel100.html">Eins</a>
  <a class="teaser-xs__link" href="  https://www.tagesschau.de/ausland/zwei.html  ">Zwei</a>
  <a class="teaser-xs__link" href="">Leer</a>
  <a class="andere" href="/sport/ignoriert.html">Ignoriert</a>
  <a class="teaser-xs__link" href="/inland/beispiel100.html">Doppelt</a>
  <a class="teaser-xs__link">Ohne href</a>
</div>
</body></html>`

func mustParse(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func mustSelector(t *testing.T, expr string) *Selector {
	t.Helper()
	sel, err := NewSelector(expr)
	if err != nil {
		t.Fatalf("NewSelector(%q) error = %v", expr, err)
	}
	return sel
}

func TestNewSelector(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantXPath bool
		wantErr   bool
	}{
		{"CSS类选择器", "a.teaser-xs__link", false, false},
		{"XPath属性", `//a[@class="teaser-xs__link"]/@href`, true, false},
		{"XPath分组", `(//div[@class="metatextline"])[1]`, true, false},
		{"空表达式", "   ", false, true},
		{"非法CSS", "a[", false, true},
		{"非法XPath", "//a[@", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := NewSelector(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSelector(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if err == nil && sel.IsXPath() != tt.wantXPath {
				t.Errorf("IsXPath() = %v, want %v", sel.IsXPath(), tt.wantXPath)
			}
		})
	}
}

func TestLinkExtractor_Extract(t *testing.T) {
	want := []string{
		"/inland/beispiel100.html",
		"https://www.tagesschau.de/ausland/zwei.html",
		"/inland/beispiel100.html",
	}

	tests := []struct {
		name string
		sel  string
		attr string
	}{
		{"CSS选择器", DefaultTeaserSelector, DefaultTeaserAttr},
		{"XPath选择元素", `//a[@class="teaser-xs__link"]`, "href"},
		{"XPath选择属性", `//a[@class="teaser-xs__link"]/@href`, "href"},
	}

	doc := mustParse(t, indexPage)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLinkExtractor(mustSelector(t, tt.sel), tt.attr)
			got := e.Extract(doc)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Extract() = %v, want %v", got, want)
			}
		})
	}
}

func TestLinkExtractor_NoAnchors(t *testing.T) {
	doc := mustParse(t, `<html><body><p>Keine Meldungen an diesem Tag</p></body></html>`)
	e := NewLinkExtractor(mustSelector(t, DefaultTeaserSelector), "")
	if got := e.Extract(doc); len(got) != 0 {
		t.Errorf("没有链接时应返回空结果, got %v", got)
	}
}

func TestLinkExtractor_MalformedMarkup(t *testing.T) {
	doc := mustParse(t, `<ul><li><a class="teaser-xs__link" href="/a.html">A</a><li><a class="teaser-xs__link" href="/b.html">B`)
	e := NewLinkExtractor(mustSelector(t, DefaultTeaserSelector), "href")
	got := e.Extract(doc)
	if !reflect.DeepEqual(got, []string{"/a.html", "/b.html"}) {
		t.Errorf("Extract() = %v", got)
	}
}

func TestTimestampExtractor_Extract(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "Stand标签",
			html: `<div class="metatextline">Stand: 07.03.2012 14:22 Uhr</div>`,
			want: "2012/2012-03/2012-03-07",
		},
		{
			name: "多行标记",
			html: "<div class=\"metatextline\">\n   Mittwoch, 07.03.2012   \n</div>",
			want: "2012/2012-03/2012-03-07",
		},
		{
			name: "单位数日期",
			html: `<div class="metatextline">Stand: 1.2.2010 08:00 Uhr</div>`,
			want: "2010/2010-02/2010-02-01",
		},
		{
			name: "只取第一个标记",
			html: `<div class="metatextline">Stand: 31.12.2014</div><div class="metatextline">01.01.2010</div>`,
			want: "2014/2014-12/2014-12-31",
		},
		{
			name: "跳过非法日期",
			html: `<div class="metatextline">30.02.2012, aktualisiert 01.03.2012</div>`,
			want: "2012/2012-03/2012-03-01",
		},
		{
			name: "缺少标记",
			html: `<div class="andere">Stand: 07.03.2012</div>`,
			want: models.UnknownPartition,
		},
		{
			name: "标记中没有日期",
			html: `<div class="metatextline">Stand: gestern</div>`,
			want: models.UnknownPartition,
		},
		{
			name: "非法日历日期",
			html: `<div class="metatextline">Stand: 32.13.2012</div>`,
			want: models.UnknownPartition,
		},
	}

	e := NewTimestampExtractor(mustSelector(t, DefaultStandSelector))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(mustParse(t, tt.html))
			if got.Partition() != tt.want {
				t.Errorf("Partition() = %q, want %q", got.Partition(), tt.want)
			}
		})
	}
}

func TestTimestampExtractor_XPath(t *testing.T) {
	e := NewTimestampExtractor(mustSelector(t, `//div[@class="metatextline"]`))
	got := e.Extract(mustParse(t, `<div class="metatextline"><span>Stand:</span> 07.03.2012</div>`))
	if got.IsUnknown() || got.Partition() != "2012/2012-03/2012-03-07" {
		t.Errorf("Partition() = %q", got.Partition())
	}
}

func TestParseStand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"07.03.2012", "2012/2012-03/2012-03-07"},
		{"  Stand: 29.02.2012 ", "2012/2012-02/2012-02-29"},
		{"29.02.2013", models.UnknownPartition},
		{"123.03.2012", models.UnknownPartition},
		{"07.03.20125", models.UnknownPartition},
		{"30.02.2012 01.03.2012", "2012/2012-03/2012-03-01"},
		{"30.02.2012,01.03.2012", "2012/2012-03/2012-03-01"},
		{"Mittwoch, 07.03.2012 14:05 Uhr", "2012/2012-03/2012-03-07"},
		{"", models.UnknownPartition},
	}
	for _, tt := range tests {
		if got := ParseStand(tt.in).Partition(); got != tt.want {
			t.Errorf("ParseStand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

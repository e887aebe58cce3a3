package feed

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
    </item>
  </channel>
</rss>`

	items := NewParser().Run([]byte(rssData))

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}
	if items[0].Title != "Test Item 1" || items[0].Link != "https://example.com/item1" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if items[0].PublishedAt == nil || items[0].PublishedAt.Hour() != 10 {
		t.Errorf("Expected published time 10:00, got %v", items[0].PublishedAt)
	}
	if items[1].PublishedAt != nil {
		t.Errorf("Expected no published time, got %v", items[1].PublishedAt)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
</feed>`

	items := NewParser().Run([]byte(atomData))

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].Title != "Test Entry" {
		t.Errorf("Expected title 'Test Entry', got: %s", items[0].Title)
	}
	if items[0].Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", items[0].Link)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected updated time to stand in for published time")
	}
}

func TestParseSkipsEntriesWithoutTitleOrLink(t *testing.T) {
	rssData := `<rss version="2.0"><channel><title>T</title>
<item><title>No link</title></item>
<item><link>https://example.com/no-title</link></item>
<item><title>Both</title><link>https://example.com/both</link></item>
</channel></rss>`

	items := NewParser().Run([]byte(rssData))

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].Link != "https://example.com/both" {
		t.Errorf("Expected the complete entry, got %+v", items[0])
	}
}

func TestParseCapsAtTenInDocumentOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<rss version="2.0"><channel><title>T</title>`)
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, `<item><title>Item %d</title><link>https://example.com/%d</link></item>`, i, i)
	}
	sb.WriteString(`</channel></rss>`)

	items := NewParser().Run([]byte(sb.String()))

	if len(items) != MaxCandidates {
		t.Fatalf("Expected %d items, got: %d", MaxCandidates, len(items))
	}
	for i, item := range items {
		if item.Link != fmt.Sprintf("https://example.com/%d", i) {
			t.Errorf("Item %d out of order: %s", i, item.Link)
		}
	}
}

func TestParseMalformedFeedFallsBackToScanning(t *testing.T) {
	// Not a recognizable feed document, so only the entry scan applies.
	data := `<document><title>Broken</title>
<item><title><![CDATA[Tom &amp; Jerry]]></title><link>https://example.com/a?x=1&amp;y=2</link></item>
<item><title>Second &lt;b&gt;</title><link><![CDATA[https://example.com/b]]></link></item>
<item><title>Missing link</title></item>
<entry><title>Atom style</title><link href="https://example.com/c"/></entry>
</document>`

	items := NewParser().Run([]byte(data))

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got: %d (%+v)", len(items), items)
	}
	if items[0].Title != "Tom & Jerry" {
		t.Errorf("Expected CDATA and entities cleaned, got %q", items[0].Title)
	}
	if items[0].Link != "https://example.com/a?x=1&y=2" {
		t.Errorf("Expected decoded link, got %q", items[0].Link)
	}
	if items[1].Title != "Second <b>" || items[1].Link != "https://example.com/b" {
		t.Errorf("Unexpected second item: %+v", items[1])
	}
	if items[2].Link != "https://example.com/c" {
		t.Errorf("Expected atom href link, got %q", items[2].Link)
	}
}

func TestParseGarbageYieldsNothing(t *testing.T) {
	items := NewParser().Run([]byte("invalid xml"))

	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
}

func TestParseRSSWithHTMLEntities(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed &amp; Special Characters</title>
    <link>https://example.com</link>
    <item>
      <title>Company didn&#8217;t fix users&#8217; security issues</title>
      <link>https://example.com/item1</link>
    </item>
  </channel>
</rss>`

	items := NewParser().Run([]byte(rssData))

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	expected := "Company didn’t fix users’ security issues"
	if items[0].Title != expected {
		t.Errorf("Expected item title %q, got %q", expected, items[0].Title)
	}
}

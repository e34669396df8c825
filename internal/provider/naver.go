package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kimchi-signal/internal/domain"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultNaverFXURL = "https://finance.naver.com/marketindex/exchangeDailyQuote.naver?marketindexCd=FX_USDKRW"

	naverMaxPages = 100
)

// NaverFX scrapes the daily USD/KRW quote table, newest page first.
type NaverFX struct {
	URL    string
	Client *http.Client
	Now    func() time.Time
}

func NewNaverFX(url string) *NaverFX {
	if url == "" {
		url = DefaultNaverFXURL
	}
	return &NaverFX{URL: url, Client: newHTTPClient(), Now: time.Now}
}

type fxRow struct {
	date string
	rate float64
}

func (n *NaverFX) Fetch(ctx context.Context, lookback int) (domain.TimeSeries, error) {
	since := domain.DaysAgo(n.Now(), lookback)
	out := make(domain.TimeSeries)

	for page := 1; page <= naverMaxPages; page++ {
		rows, err := n.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		done := false
		for _, r := range rows {
			if r.date < since {
				done = true
				break
			}
			if _, seen := out[r.date]; !seen {
				out[r.date] = r.rate
			}
		}
		if done {
			break
		}
	}
	return out, nil
}

func (n *NaverFX) fetchPage(ctx context.Context, page int) ([]fxRow, error) {
	body, err := getBody(ctx, n.Client, fmt.Sprintf("%s&page=%d", n.URL, page), "naver fx")
	if err != nil {
		return nil, err
	}
	rows, err := parseFXTable(body)
	if err != nil {
		return nil, fmt.Errorf("naver fx page %d: %w", page, err)
	}
	return rows, nil
}

// parseFXTable reads rows of table.tbl_exchange tbody. The first cell holds
// "2024.01.02", the second "1,350.50"; rows that don't parse are skipped.
func parseFXTable(body []byte) ([]fxRow, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	table := findElement(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Table && hasClass(n, "tbl_exchange")
	})
	if table == nil {
		return nil, nil
	}
	tbody := findElement(table, func(n *html.Node) bool { return n.DataAtom == atom.Tbody })
	if tbody == nil {
		return nil, nil
	}

	var rows []fxRow
	for tr := tbody.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
			continue
		}
		cells := childElements(tr, atom.Td)
		if len(cells) < 2 {
			continue
		}
		date := strings.ReplaceAll(strings.TrimSpace(textContent(cells[0])), ".", "-")
		if _, err := domain.ParseDate(date); err != nil {
			continue
		}
		rateStr := strings.ReplaceAll(strings.TrimSpace(textContent(cells[1])), ",", "")
		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil || rate <= 0 {
			continue
		}
		rows = append(rows, fxRow{date: date, rate: rate})
	}
	return rows, nil
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

package universe

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/church-studio/venue-api/internal/occurrence"
)

var ldScriptRE = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// occurrencesFromJSONLD extracts schema.org Event occurrences from the
// ld+json blocks embedded in an event page. EventSeries nodes contribute
// their sub-events. Unparseable blocks contribute nothing.
func occurrencesFromJSONLD(html, pageURL string) []occurrence.Occurrence {
	var out []occurrence.Occurrence

	for _, m := range ldScriptRE.FindAllStringSubmatch(html, -1) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &doc); err != nil {
			continue
		}

		walkJSONLD(doc, func(node map[string]any) {
			switch nodeString(node, "@type") {
			case "Event":
				if start := eventStart(node); start != "" {
					out = append(out, normalizeLDEvent(node, start, pageURL, nestedName(node, "location")))
				}
			case "EventSeries":
				seriesLocation := nestedName(node, "location")
				for _, sub := range nodeList(node, "subEvent") {
					se, ok := sub.(map[string]any)
					if !ok || nodeString(se, "@type") != "Event" {
						continue
					}
					start := eventStart(se)
					if start == "" {
						continue
					}
					loc := nestedName(se, "location")
					if loc == "" {
						loc = seriesLocation
					}
					out = append(out, normalizeLDEvent(se, start, pageURL, loc))
				}
			}
		})
	}

	return out
}

// walkJSONLD visits every object node reachable through the containers
// JSON-LD documents nest events in.
func walkJSONLD(v any, visit func(map[string]any)) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			walkJSONLD(item, visit)
		}
	case map[string]any:
		visit(node)
		for _, key := range []string{"@graph", "graph", "itemListElement", "subEvent"} {
			if child, ok := node[key]; ok {
				walkJSONLD(child, visit)
			}
		}
	}
}

func normalizeLDEvent(node map[string]any, start, pageURL, locationName string) occurrence.Occurrence {
	raw := occurrence.RawEvent{
		ID:           nodeString(node, "@id"),
		URL:          nodeString(node, "url"),
		Name:         nodeString(node, "name"),
		Description:  nodeString(node, "description"),
		LocationName: nestedName(node, "location"),
		Locality:     locationAddressField(node, "addressLocality"),
		Region:       locationAddressField(node, "addressRegion"),
	}
	if raw.URL == "" {
		raw.URL = pageURL
	}

	// offers is a single object or a list; take the first url either way.
	switch offers := node["offers"].(type) {
	case map[string]any:
		raw.OfferURL = nodeString(offers, "url")
	case []any:
		for _, o := range offers {
			om, ok := o.(map[string]any)
			if !ok {
				continue
			}
			if u := nodeString(om, "url"); u != "" {
				raw.OfferURLs = append(raw.OfferURLs, u)
			}
		}
	}

	return occurrence.Normalize(raw, occurrence.RawSlot{StartDate: start}, locationName)
}

func eventStart(node map[string]any) string {
	if s := nodeString(node, "startDate"); s != "" {
		return s
	}
	return nodeString(node, "startTime")
}

func nodeString(node map[string]any, key string) string {
	s, _ := node[key].(string)
	return s
}

func nodeList(node map[string]any, key string) []any {
	l, _ := node[key].([]any)
	return l
}

func nestedName(node map[string]any, key string) string {
	child, _ := node[key].(map[string]any)
	if child == nil {
		return ""
	}
	return nodeString(child, "name")
}

func locationAddressField(node map[string]any, key string) string {
	location, _ := node["location"].(map[string]any)
	if location == nil {
		return ""
	}
	address, _ := location["address"].(map[string]any)
	if address == nil {
		return ""
	}
	return nodeString(address, key)
}

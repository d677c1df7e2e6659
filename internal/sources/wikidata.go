package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// Entity class QIDs checked against an entity's "instance of" statements.
const (
	qidHuman          = "Q5"
	qidMusicalGroup   = "Q215380"
	qidVTuber         = "Q55155641"
	qidVirtualIdol    = "Q24236999"
	qidVocaloid       = "Q125130106"
	qidVirtualBand    = "Q3736859"
	qidFictionalChar  = "Q95074"
	qidFictionalHuman = "Q15632617"
	qidDisambiguation = "Q4167410"
)

// wikidataSPARQL finds entities matching the artist name via the search API
// and returns every "instance of" class for each hit, ordered by search
// relevance.
const wikidataSPARQL = `SELECT ?item ?type WHERE {
  SERVICE wikibase:mwapi {
    bd:serviceParam wikibase:endpoint "www.wikidata.org";
                    wikibase:api "EntitySearch";
                    mwapi:search %q;
                    mwapi:language "en".
    ?item wikibase:apiOutputItem mwapi:item.
    ?num wikibase:apiOrdinal true.
  }
  ?item wdt:P31 ?type.
} ORDER BY ?num LIMIT 50`

// WikidataConfig carries the Wikidata adapter settings.
type WikidataConfig struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

// WikidataAdapter classifies artists from their Wikidata entity classes.
// Wikidata is the only source that can positively assert a human performer.
type WikidataAdapter struct {
	cfg        WikidataConfig
	httpClient *http.Client
	metrics    *metrics.SourceMetrics
}

// NewWikidataAdapter creates a Wikidata SPARQL adapter. m may be nil.
func NewWikidataAdapter(cfg WikidataConfig, m *metrics.SourceMetrics) *WikidataAdapter {
	return &WikidataAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
}

// Name implements classify.SourceAdapter.
func (a *WikidataAdapter) Name() string { return "wikidata" }

// sparqlResponse is the subset of the SPARQL JSON result format we read.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Lookup implements classify.SourceAdapter. It searches for the artist by
// name and maps the first usable entity's classes to a label. Entities that
// are disambiguation pages are skipped.
func (a *WikidataAdapter) Lookup(ctx context.Context, artist classify.ArtistIdentity) (*classify.SourceSignal, error) {
	queriedAt := time.Now()
	query := fmt.Sprintf(wikidataSPARQL, artist.Name)

	endpoint := fmt.Sprintf("%s?query=%s&format=json", a.cfg.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		a.metrics.RecordSourceError(a.Name(), "request_build")
		return nil, errors.New(err).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Build()
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.RecordSourceRequest(a.Name(), "error")
		a.metrics.RecordSourceError(a.Name(), "network")
		return nil, errors.New(err).
			Component("sources").
			Category(errors.CategoryNetwork).
			Context("source", a.Name()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	a.metrics.RecordSourceDuration(a.Name(), time.Since(queriedAt).Seconds())

	if resp.StatusCode != http.StatusOK {
		a.metrics.RecordSourceRequest(a.Name(), "error")
		a.metrics.RecordSourceError(a.Name(), fmt.Sprintf("http_%d", resp.StatusCode))
		return nil, errors.Newf("wikidata query returned status %d", resp.StatusCode).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.metrics.RecordSourceError(a.Name(), "read_body")
		return nil, errors.New(err).
			Component("sources").
			Category(errors.CategoryNetwork).
			Context("source", a.Name()).
			Build()
	}

	var parsed sparqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		a.metrics.RecordSourceError(a.Name(), "parse")
		return nil, errors.New(err).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Build()
	}
	a.metrics.RecordSourceRequest(a.Name(), "success")

	signal := a.signalFromBindings(artist, &parsed)
	signal.QueriedAt = queriedAt
	signal.Duration = time.Since(queriedAt)
	a.metrics.RecordSourceSignal(a.Name(), signalLabelForMetrics(signal))

	logger.Debug("wikidata lookup finished",
		"artist_name", artist.Name,
		"label", signal.Label,
		"evidence", signal.Evidence)
	return signal, nil
}

// signalFromBindings groups class bindings by entity, in relevance order,
// and converts the first usable entity into a signal.
func (a *WikidataAdapter) signalFromBindings(artist classify.ArtistIdentity, parsed *sparqlResponse) *classify.SourceSignal {
	type entity struct {
		uri   string
		types []string
	}
	var order []string
	byURI := make(map[string]*entity)

	for _, binding := range parsed.Results.Bindings {
		item, ok := binding["item"]
		if !ok {
			continue
		}
		typ, ok := binding["type"]
		if !ok {
			continue
		}
		e := byURI[item.Value]
		if e == nil {
			e = &entity{uri: item.Value}
			byURI[item.Value] = e
			order = append(order, item.Value)
		}
		e.types = append(e.types, qidFromURI(typ.Value))
	}

	for _, uri := range order {
		e := byURI[uri]
		if containsQID(e.types, qidDisambiguation) {
			continue
		}
		label, hint, conf := labelFromQIDs(e.types)
		if label == classify.LabelNone {
			continue
		}
		return &classify.SourceSignal{
			Source:      a.Name(),
			Label:       label,
			Confidence:  conf,
			VirtualHint: hint,
			Evidence:    "P31: " + strings.Join(e.types, ", "),
			URL:         e.uri,
		}
	}

	// No entity matched, or none carried a class we understand.
	return &classify.SourceSignal{Source: a.Name()}
}

// labelFromQIDs maps an entity's classes to a label. Specific artificial
// classes outrank the generic human and group classes an entity often also
// carries, e.g. a vtuber entity is usually also instance-of human.
func labelFromQIDs(qids []string) (label classify.Label, virtualHint bool, confidence float64) {
	switch {
	case containsQID(qids, qidVTuber):
		return classify.LabelVTuber, false, 0.9
	case containsQID(qids, qidVocaloid):
		return classify.LabelVocaloid, false, 0.9
	case containsQID(qids, qidVirtualIdol):
		return classify.LabelVirtualIdol, false, 0.9
	case containsQID(qids, qidVirtualBand):
		return classify.LabelBand, true, 0.9
	case containsQID(qids, qidFictionalChar), containsQID(qids, qidFictionalHuman):
		return classify.LabelFictional, false, 0.85
	case containsQID(qids, qidMusicalGroup):
		return classify.LabelBand, false, 0.8
	case containsQID(qids, qidHuman):
		return classify.LabelHuman, false, 0.8
	default:
		return classify.LabelNone, false, 0
	}
}

func containsQID(qids []string, qid string) bool {
	for _, q := range qids {
		if q == qid {
			return true
		}
	}
	return false
}

// qidFromURI strips the entity URI prefix, http://www.wikidata.org/entity/Q5 -> Q5.
func qidFromURI(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

// signalLabelForMetrics avoids an empty metric label for no-data signals.
func signalLabelForMetrics(signal *classify.SourceSignal) string {
	if signal.Label == classify.LabelNone {
		return "none"
	}
	return signal.Label.String()
}

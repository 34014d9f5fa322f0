package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"agri-search-go/internal/model"
	"agri-search-go/pkg/catalog"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/log"
)

// NoDocumentsMessage is shown in place of an empty listing.
const NoDocumentsMessage = "No documents found."

// CatalogService keeps the document listing snapshot.
type CatalogService interface {
	// Reload fetches the listing and replaces the snapshot. It never fails:
	// fetch problems produce an empty listing with a placeholder.
	Reload(ctx context.Context) model.Listing
	List() model.Listing
	// Lookup finds a listed document by URL.
	Lookup(url string) (model.DocumentRef, bool)
}

type catalogService struct {
	client catalog.Client

	mu       sync.RWMutex
	snapshot model.Listing
}

func NewCatalogService(client catalog.Client) CatalogService {
	return &catalogService{
		client:   client,
		snapshot: model.Listing{Documents: []model.DocumentRef{}, Placeholder: NoDocumentsMessage},
	}
}

func (s *catalogService) Reload(ctx context.Context) model.Listing {
	listing := model.Listing{LoadedAt: model.LocalTime(time.Now())}

	raw, err := s.client.Titles(ctx)
	if err != nil {
		log.Warnw("Failed to load document listing", "kind", errs.KindOf(err), "error", err)
		raw = nil
	}
	listing.Documents = normalize(raw)
	if len(listing.Documents) == 0 {
		listing.Placeholder = NoDocumentsMessage
	}

	s.mu.Lock()
	s.snapshot = listing
	s.mu.Unlock()

	log.Infof("Document listing loaded: %d documents", len(listing.Documents))
	return listing
}

func (s *catalogService) List() model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *catalogService) Lookup(url string) (model.DocumentRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.snapshot.Documents {
		if d.URL == url {
			return d, true
		}
	}
	return model.DocumentRef{}, false
}

// normalize drops duplicate URLs (first wins) and fills missing titles.
func normalize(docs []model.DocumentRef) []model.DocumentRef {
	out := make([]model.DocumentRef, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.URL == "" {
			continue
		}
		if _, dup := seen[d.URL]; dup {
			continue
		}
		seen[d.URL] = struct{}{}
		if strings.TrimSpace(d.Title) == "" {
			d.Title = DeriveFilename(d.URL)
		}
		out = append(out, d)
	}
	return out
}

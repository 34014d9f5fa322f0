package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"agri-search-go/internal/model"
	"agri-search-go/pkg/converter"
	"agri-search-go/pkg/download"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/kafka"
	"agri-search-go/pkg/log"
	"agri-search-go/pkg/storage"

	"github.com/google/uuid"
)

// Action outcomes recorded in the journal.
const (
	OutcomeSaved    = "saved"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Fetcher retrieves documents for direct saves. Stream is the strict path,
// Fetch the buffered fallback.
type Fetcher interface {
	Stream(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

var _ Fetcher = (*download.Fetcher)(nil)

// Dispatcher resolves a selected document into a saved file.
//
// Only conversions hold the busy token. A direct save checks it once on entry
// and does not hold it, so a conversion may start while a direct save is
// still downloading.
type Dispatcher interface {
	// Resolve saves doc directly, or converts it first when convert is set.
	// It is rejected with a busy error while a conversion is in flight.
	Resolve(ctx context.Context, doc model.DocumentRef, convert bool) (*model.ActionResult, error)
	State() model.ActionState
}

type dispatcher struct {
	fetcher      Fetcher
	converter    converter.Client
	sink         storage.Sink
	journal      kafka.Journal
	reportSuffix string

	mu    sync.Mutex
	state model.ActionState
}

func NewDispatcher(fetcher Fetcher, conv converter.Client, sink storage.Sink, journal kafka.Journal, reportSuffix string) Dispatcher {
	return &dispatcher{
		fetcher:      fetcher,
		converter:    conv,
		sink:         sink,
		journal:      journal,
		reportSuffix: reportSuffix,
	}
}

func (d *dispatcher) State() model.ActionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *dispatcher) Resolve(ctx context.Context, doc model.DocumentRef, convert bool) (*model.ActionResult, error) {
	mode := model.ModeFor(convert)
	started := time.Now()
	ev := model.ActionEvent{ID: uuid.NewString(), Mode: mode, URL: doc.URL}

	if err := validateDocumentURL(doc.URL); err != nil {
		d.record(ctx, ev, started, nil, err)
		return nil, err
	}

	var (
		res *model.ActionResult
		err error
	)
	if convert {
		if !d.acquire(mode, doc.URL) {
			err = errs.Busy()
			d.record(ctx, ev, started, nil, err)
			return nil, err
		}
		func() {
			defer d.release()
			res, err = d.convert(ctx, doc)
		}()
	} else {
		if d.State().Busy {
			err = errs.Busy()
			d.record(ctx, ev, started, nil, err)
			return nil, err
		}
		res, err = d.direct(ctx, doc)
	}

	if res != nil {
		res.ID = ev.ID
		res.Mode = mode
	}
	d.record(ctx, ev, started, res, err)
	return res, err
}

// acquire takes the busy token. It fails if another action holds it.
func (d *dispatcher) acquire(mode model.ActionMode, rawURL string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Busy {
		return false
	}
	now := model.LocalTime(time.Now())
	d.state = model.ActionState{Busy: true, Mode: mode, URL: rawURL, Since: &now}
	return true
}

func (d *dispatcher) release() {
	d.mu.Lock()
	d.state = model.ActionState{}
	d.mu.Unlock()
}

func (d *dispatcher) direct(ctx context.Context, doc model.DocumentRef) (*model.ActionResult, error) {
	name := DeriveFilename(doc.URL)

	body, size, err := d.fetcher.Stream(ctx, doc.URL)
	if err == nil {
		location, saveErr := d.sink.Save(ctx, name, body, size)
		body.Close()
		if saveErr == nil {
			log.Infof("Saved %s to %s", doc.URL, location)
			return &model.ActionResult{Filename: name, Location: location, Size: size}, nil
		}
		err = saveErr
	}
	if errors.Is(err, download.ErrHostNotAllowed) {
		log.Debugf("Streaming not allowed for %s, fetching instead", doc.URL)
	} else {
		log.Warnf("Streaming %s failed, fetching instead: %v", doc.URL, err)
	}

	data, err := d.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		return nil, err
	}
	location, err := d.sink.Save(ctx, name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Storage(err)
	}
	log.Infof("Saved %s to %s (buffered)", doc.URL, location)
	return &model.ActionResult{Filename: name, Location: location, Size: int64(len(data)), Fallback: true}, nil
}

func (d *dispatcher) convert(ctx context.Context, doc model.DocumentRef) (*model.ActionResult, error) {
	log.Infof("Converting %s", doc.URL)
	report, err := d.converter.Convert(ctx, doc.URL)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(doc.Title)
	if source == "" {
		source = DeriveFilename(doc.URL)
	}
	name := ReportFilename(source, d.reportSuffix)

	location, err := d.sink.Save(ctx, name, bytes.NewReader(report.Data), int64(len(report.Data)))
	if err != nil {
		return nil, errs.Storage(err)
	}
	log.Infof("Saved report for %s to %s", doc.URL, location)
	return &model.ActionResult{Filename: name, Location: location, Size: int64(len(report.Data))}, nil
}

func (d *dispatcher) record(ctx context.Context, ev model.ActionEvent, started time.Time, res *model.ActionResult, err error) {
	ev.DurationMS = time.Since(started).Milliseconds()
	ev.At = model.LocalTime(started)
	switch {
	case err == nil:
		ev.Outcome = OutcomeSaved
		ev.Filename = res.Filename
		ev.Location = res.Location
	case errs.KindOf(err) == errs.KindBusy || errs.KindOf(err) == errs.KindValidation:
		ev.Outcome = OutcomeRejected
		ev.Error = errs.UserMessage(err)
	default:
		ev.Outcome = OutcomeFailed
		ev.Error = errs.UserMessage(err)
		log.Errorf("Document action %s on %s failed: %v", ev.Mode, ev.URL, err)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if perr := d.journal.Publish(pctx, ev); perr != nil {
		log.Warnf("Failed to publish action event %s: %v", ev.ID, perr)
	}
}

func validateDocumentURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errs.Validation("document url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.Validation("document url must be an absolute http(s) url")
	}
	return nil
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skypass/internal/config"
	"github.com/star/skypass/internal/httputil"
	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/tracker"
	"github.com/star/skypass/internal/transform"
)

// maxPassCount bounds the passes returned by one synchronous request.
const maxPassCount = 20

type metadataResponse struct {
	Source     string         `json:"source"`
	FetchedAt  time.Time      `json:"fetched_at"`
	AgeSeconds float64        `json:"age_seconds"`
	Count      int            `json:"count"`
	EpochRange tle.EpochRange `json:"epoch_range"`
}

func metadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := store.Get()
		if c == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no TLE catalog loaded")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, metadataResponse{
			Source:     c.Source,
			FetchedAt:  c.FetchedAt,
			AgeSeconds: store.AgeSeconds(),
			Count:      len(c.Satellites),
			EpochRange: c.EpochRange,
		})
	}
}

func refreshHandler(logger *slog.Logger, loader *tle.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if loader == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "TLE fetching is disabled")
			return
		}
		c, err := loader.Refresh(r.Context())
		if err != nil {
			logger.Warn("manual TLE refresh failed", "error", err)
			httputil.WriteError(w, http.StatusBadGateway, "refresh failed, previous catalog kept")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, metadataResponse{
			Source:     c.Source,
			FetchedAt:  c.FetchedAt,
			Count:      len(c.Satellites),
			EpochRange: c.EpochRange,
		})
	}
}

// observerFrom reads the optional lat/lon pair.
func observerFrom(r *http.Request) (*transform.Observer, error) {
	lat, lon, ok, err := httputil.ObserverParams(r.URL.Query())
	if err != nil || !ok {
		return nil, err
	}
	obs := transform.NewObserver(lat, lon)
	return &obs, nil
}

func positionsHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obs, err := observerFrom(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := httputil.TimeParam(r.URL.Query(), "at", time.Now().UTC())
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		snap, err := prop.PropagateToTime(r.Context(), at, obs)
		switch {
		case errors.Is(err, propagation.ErrNoCatalog):
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			logger.Warn("batch propagation aborted", "error", err)
			httputil.WriteError(w, http.StatusServiceUnavailable, "propagation aborted")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

// noradID parses the {norad_id} path value.
func noradID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		return 0, errors.New("norad_id must be a positive integer")
	}
	return id, nil
}

func positionHandler(prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := noradID(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		obs, err := observerFrom(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := httputil.TimeParam(r.URL.Query(), "at", time.Now().UTC())
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		entry, model, err := prop.Model(id)
		if !writeLookupError(w, err) {
			return
		}
		pos, err := propagation.PositionAt(model, at, obs)
		if err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, propagation.SatellitePosition{
			NORADID:  entry.CatalogNumber,
			Name:     entry.Name,
			Position: pos,
		})
	}
}

// writeLookupError maps catalog lookup errors to responses. It returns true
// when err is nil and the handler should continue.
func writeLookupError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, propagation.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, tle.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	default:
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	}
	return false
}

// lookup finds a satellite in the current catalog.
func lookup(store *tle.Store, id int) (tle.TLE, error) {
	if store.Get() == nil {
		return tle.TLE{}, propagation.ErrNoCatalog
	}
	entry, ok := store.Lookup(id)
	if !ok {
		return tle.TLE{}, tle.ErrNotFound
	}
	return entry, nil
}

// requiredObserver reads lat/lon, which must both be present.
func requiredObserver(r *http.Request) (transform.Observer, error) {
	obs, err := observerFrom(r)
	if err != nil {
		return transform.Observer{}, err
	}
	if obs == nil {
		return transform.Observer{}, errors.New("lat and lon are required")
	}
	return *obs, nil
}

func passesHandler(cfg config.Config, store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := noradID(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		obs, err := requiredObserver(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		q := r.URL.Query()
		opts := cfg.PassOptions()
		if opts.MinElevation, err = httputil.FloatParam(q, "min_elevation", opts.MinElevation, 0, 90); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if opts.MaxHours, err = httputil.FloatParam(q, "hours", opts.MaxHours, 1.0/60, config.MaxSearchHours); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		count, err := httputil.IntParam(q, "count", cfg.Passes.MaxPasses, 1, maxPassCount)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		start, err := httputil.TimeParam(q, "start", time.Now().UTC())
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		entry, err := lookup(store, id)
		if !writeLookupError(w, err) {
			return
		}

		results := passes.Predict(r.Context(), passes.Request{
			Observer:        obs,
			Entries:         []tle.TLE{entry},
			Start:           start,
			Options:         opts,
			MaxPasses:       count,
			GroundTrackStep: cfg.Passes.GroundTrackStep,
			Model:           cfg.ModelFactory(),
		})
		res := results[0]
		if res.Error != "" && len(res.Passes) == 0 {
			httputil.WriteError(w, http.StatusUnprocessableEntity, res.Error)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

type nextPassAccepted struct {
	Token   uint64 `json:"token"`
	NORADID int    `json:"norad_id"`
}

func nextPassRequestHandler(logger *slog.Logger, store *tle.Store, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := noradID(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		obs, err := requiredObserver(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		start, err := httputil.TimeParam(r.URL.Query(), "start", time.Now().UTC())
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		entry, err := lookup(store, id)
		if !writeLookupError(w, err) {
			return
		}

		token := tr.Request(entry, obs, start)
		logger.Debug("next pass search started", "norad_id", id, "token", token)
		w.Header().Set("Location", r.URL.Path)
		httputil.WriteJSON(w, http.StatusAccepted, nextPassAccepted{Token: token, NORADID: id})
	}
}

func nextPassStatusHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := noradID(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		st, ok := tr.Status(id)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "no next-pass request for this satellite")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, st)
	}
}

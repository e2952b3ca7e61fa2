package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"

	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/export"
)

const qrSize = 256

// parseLocationQuery reads and validates lat and lng. The returned error
// wraps domain.ErrBadRequest.
func (s *Server) parseLocationQuery(r *http.Request) (domain.LocationQuery, error) {
	rawLat := strings.TrimSpace(r.URL.Query().Get("lat"))
	rawLng := strings.TrimSpace(r.URL.Query().Get("lng"))
	if rawLat == "" || rawLng == "" {
		return domain.LocationQuery{}, fmt.Errorf("%w: lat and lng are required", domain.ErrBadRequest)
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.LocationQuery{}, fmt.Errorf("%w: lat %q is not a number", domain.ErrBadRequest, rawLat)
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return domain.LocationQuery{}, fmt.Errorf("%w: lng %q is not a number", domain.ErrBadRequest, rawLng)
	}

	q := domain.LocationQuery{Lat: lat, Lng: lng}
	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return q, fmt.Errorf("%w: %s is out of range", domain.ErrBadRequest, strings.ToLower(verrs[0].Field()))
		}
		return q, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}
	return q, nil
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseLocationQuery(r)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	report, err := s.locator.Lookup(r.Context(), q)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseLocationQuery(r)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	report, err := s.locator.Lookup(r.Context(), q)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	var buf bytes.Buffer
	coord := domain.Coordinate{Lat: q.Lat, Lng: q.Lng}
	if err := export.Write(&buf, coord, report, s.cfg.Grid.Years, s.cfg.Grid.Periods); err != nil {
		s.logger.Error("render download failed", "error", err)
		writeLookupError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeSearchDisabled, "address search is not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "q is required")
		return
	}

	places, err := s.geocoder.Search(r.Context(), query, s.language(r))
	if err != nil {
		s.logger.Warn("address search failed", "error", err)
		writeError(w, r, http.StatusBadGateway, codeUpstream, "address search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": places})
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeSearchDisabled, "address search is not configured")
		return
	}
	q, err := s.parseLocationQuery(r)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	place, err := s.geocoder.Reverse(r.Context(), q.Lat, q.Lng, s.language(r))
	if err != nil {
		s.logger.Warn("reverse geocode failed", "error", err)
		writeError(w, r, http.StatusBadGateway, codeUpstream, "reverse geocoding failed")
		return
	}
	if place.Label == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no place at this location")
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	state := s.codec.Decode(r.URL.RawQuery)
	link, err := s.codec.ShareURL(s.cfg.PublicBaseURL, state)
	if err != nil {
		s.logger.Error("build share url failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "an unexpected error occurred")
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("encode qr code failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "an unexpected error occurred")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Share-URL", link)
	_, _ = w.Write(png)
}

// ClientConfig is the enumeration set clients build their controls from.
type ClientConfig struct {
	Years                []int    `json:"years"`
	Periods              []int    `json:"periods"`
	OverlayPeriods       []int    `json:"overlay_periods"`
	DefaultYear          int      `json:"default_year"`
	DefaultOverlayPeriod int      `json:"default_overlay_period"`
	Languages            []string `json:"languages"`
	TileURLTemplate      string   `json:"tile_url_template"`
	PublicBaseURL        string   `json:"public_base_url"`
	SearchEnabled        bool     `json:"search_enabled"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	g := s.cfg.Grid
	writeJSON(w, http.StatusOK, ClientConfig{
		Years:                g.Years,
		Periods:              g.Periods,
		OverlayPeriods:       g.OverlayPeriods,
		DefaultYear:          s.codec.Defaults().Year,
		DefaultOverlayPeriod: g.DefaultOverlayPeriod,
		Languages:            g.Languages,
		TileURLTemplate:      s.cfg.TileURLTemplate,
		PublicBaseURL:        s.cfg.PublicBaseURL,
		SearchEnabled:        s.geocoder != nil,
	})
}

// language returns the requested lang when supported, else the first configured one.
func (s *Server) language(r *http.Request) string {
	lang := r.URL.Query().Get("lang")
	if slices.Contains(s.cfg.Grid.Languages, lang) {
		return lang
	}
	if len(s.cfg.Grid.Languages) > 0 {
		return s.cfg.Grid.Languages[0]
	}
	return ""
}

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

const maxBodySize = 1 << 16

// backendRequest names a registered backend or authority type and its config.
type backendRequest struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// addressRequest carries the address an admin operation targets.
type addressRequest struct {
	Address string `json:"address"`
}

// adminHandler runs an authenticated mutation as caller against f.
type adminHandler func(r *http.Request, f Feed, caller common.Address) error

func (s *Server) registerAdmin(mux *http.ServeMux) {
	s.admin(mux, "propose", s.handlePropose)
	s.admin(mux, "confirm", s.handleConfirm)
	s.admin(mux, "set-aggregator", s.handleSetAggregator)
	s.admin(mux, "authority", s.handleSetAuthority)
	s.admin(mux, "whitelist/add", s.handleWhitelistAdd)
	s.admin(mux, "whitelist/remove", s.handleWhitelistRemove)
	s.admin(mux, "whitelist/enable", s.handleWhitelistEnable)
	s.admin(mux, "whitelist/disable", s.handleWhitelistDisable)
	s.admin(mux, "ownership/transfer", s.handleTransferOwnership)
	s.admin(mux, "ownership/accept", s.handleAcceptOwnership)
}

// admin registers an operation under /v1/admin/feeds/{name}/. The token only
// opens the endpoint; the proxy still checks that caller is allowed.
func (s *Server) admin(mux *http.ServeMux, operation string, h adminHandler) {
	s.route(mux, "POST /v1/admin/feeds/{name}/"+operation, func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkAdmin(r); err != nil {
			s.sendError(w, err)
			return
		}
		f, err := s.feed(r)
		if err != nil {
			s.sendError(w, err)
			return
		}
		caller, err := callerFrom(r, true)
		if err != nil {
			s.sendError(w, err)
			return
		}
		if err := h(r, f, caller); err != nil {
			s.logger.Info("Admin operation rejected", "feed", f.Name(), "operation", operation, "caller", caller, "error", err)
			s.sendError(w, err)
			return
		}
		s.logger.Info("Admin operation applied", "feed", f.Name(), "operation", operation, "caller", caller)
		s.sendJSON(w, http.StatusOK, describe(f))
	})
}

func (s *Server) handlePropose(r *http.Request, f Feed, caller common.Address) error {
	rot, ok := f.(rotator)
	if !ok {
		return ErrNotSupported
	}
	candidate, err := s.backendFrom(r)
	if err != nil {
		return err
	}
	return rot.ProposeAggregator(caller, candidate)
}

func (s *Server) handleConfirm(r *http.Request, f Feed, caller common.Address) error {
	rot, ok := f.(rotator)
	if !ok {
		return ErrNotSupported
	}
	addr, err := addressFrom(r)
	if err != nil {
		return err
	}
	return rot.ConfirmAggregator(caller, addr)
}

func (s *Server) handleSetAggregator(r *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	next, err := s.backendFrom(r)
	if err != nil {
		return err
	}
	return g.SetAggregator(caller, next)
}

func (s *Server) handleSetAuthority(r *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	var req backendRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	authority, err := backend.CreateAuthority(req.Type, s.withLogger(req.Config))
	if err != nil {
		return err
	}
	return g.SetAuthority(caller, authority)
}

func (s *Server) handleWhitelistAdd(r *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	addr, err := addressFrom(r)
	if err != nil {
		return err
	}
	return g.AddToWhitelist(caller, addr)
}

func (s *Server) handleWhitelistRemove(r *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	addr, err := addressFrom(r)
	if err != nil {
		return err
	}
	return g.RemoveFromWhitelist(caller, addr)
}

func (s *Server) handleWhitelistEnable(_ *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	return g.EnableWhitelist(caller)
}

func (s *Server) handleWhitelistDisable(_ *http.Request, f Feed, caller common.Address) error {
	g, ok := f.(gate)
	if !ok {
		return ErrNotSupported
	}
	return g.DisableWhitelist(caller)
}

func (s *Server) handleTransferOwnership(r *http.Request, f Feed, caller common.Address) error {
	nominee, err := addressFrom(r)
	if err != nil {
		return err
	}
	return f.TransferOwnership(caller, nominee)
}

func (s *Server) handleAcceptOwnership(_ *http.Request, f Feed, caller common.Address) error {
	return f.AcceptOwnership(caller)
}

// backendFrom builds the backend described by the request body.
func (s *Server) backendFrom(r *http.Request) (feed.Backend, error) {
	var req backendRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return backend.Create(req.Type, s.withLogger(req.Config))
}

func (s *Server) withLogger(config map[string]interface{}) map[string]interface{} {
	if config == nil {
		config = make(map[string]interface{})
	}
	config["logger"] = s.logger
	return config
}

func addressFrom(r *http.Request) (common.Address, error) {
	var req addressRequest
	if err := decodeBody(r, &req); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(req.Address) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, req.Address)
	}
	return common.HexToAddress(req.Address), nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	return nil
}

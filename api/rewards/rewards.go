// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rewards exposes the reward engine command surface over HTTP.
// Mutating endpoints carry the caller identity in the X-Caller header; the
// engine enforces capabilities, the handlers only translate errors.
package rewards

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/relaynet/rewards/api/utils"
	"github.com/relaynet/rewards/engine"
	"github.com/relaynet/rewards/relay"
)

// CallerHeader carries the caller identity on mutating requests.
const CallerHeader = "X-Caller"

type Rewards struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *Rewards {
	return &Rewards{engine: eng}
}

func (r *Rewards) handleGetConfiguration(w http.ResponseWriter, _ *http.Request) error {
	cfg, err := r.engine.ViewConfiguration()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, cfg)
}

func (r *Rewards) handleUpdateConfiguration(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return utils.BadRequest(err)
	}
	if err := r.engine.UpdateConfiguration(caller, body); err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{"Status": "OK"})
}

func (r *Rewards) handleGetRounds(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, utils.M{"Pending": r.engine.PendingTimestamps()})
}

func (r *Rewards) handleAddScores(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return utils.BadRequest(err)
	}
	if err := r.engine.AddScores(caller, mux.Vars(req)["timestamp"], body); err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{"Status": "OK"})
}

func (r *Rewards) handleCompleteRound(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	completed, err := r.engine.CompleteRound(caller, mux.Vars(req)["timestamp"])
	if err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{
		"Status":    "OK",
		"Timestamp": completed.Timestamp,
		"Period":    completed.Period,
		"Entities":  completed.Summary.Entities,
		"Ratings":   completed.Summary.Ratings,
		"Rewards":   completed.Summary.Rewards,
	})
}

func (r *Rewards) handleCancelRound(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	if err := r.engine.CancelRound(caller, mux.Vars(req)["timestamp"]); err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{"Status": "OK"})
}

func (r *Rewards) handleGetRewards(w http.ResponseWriter, req *http.Request) error {
	view, err := r.engine.GetRewards(
		mux.Vars(req)["beneficiary"],
		req.URL.Query().Get("counterparty"),
		req.URL.Query().Get("timestamp"),
	)
	if err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{
		"Rewarded": view.Rewarded,
		"Claimed":  view.Claimed,
	})
}

func (r *Rewards) handleClaimRewards(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	moved, err := r.engine.ClaimRewards(caller, mux.Vars(req)["beneficiary"], req.URL.Query().Get("counterparty"))
	if err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, moved)
}

func (r *Rewards) handleGetClaimed(w http.ResponseWriter, req *http.Request) error {
	claimed, err := r.engine.GetClaimed(mux.Vars(req)["beneficiary"], req.URL.Query().Get("timestamp"))
	if err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, claimed)
}

func (r *Rewards) handleGetClaimedTable(w http.ResponseWriter, req *http.Request) error {
	table, err := r.engine.ClaimedTable(req.URL.Query().Get("timestamp"))
	if err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, table)
}

func (r *Rewards) handleViewState(w http.ResponseWriter, _ *http.Request) error {
	state, err := r.engine.View()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", utils.JSONContentType)
	_, err = w.Write(state)
	return err
}

func (r *Rewards) handleInitState(w http.ResponseWriter, req *http.Request) error {
	caller, err := parseCaller(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return utils.BadRequest(err)
	}
	if err := r.engine.Init(caller, body); err != nil {
		return commandError(err)
	}
	return utils.WriteJSON(w, utils.M{"Status": "OK"})
}

func (r *Rewards) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/configuration").
		Methods(http.MethodGet).
		Name("GET /configuration").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetConfiguration))
	sub.Path("/configuration").
		Methods(http.MethodPost).
		Name("POST /configuration").
		HandlerFunc(utils.WrapHandlerFunc(r.handleUpdateConfiguration))
	sub.Path("/rounds").
		Methods(http.MethodGet).
		Name("GET /rounds").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetRounds))
	sub.Path("/rounds/{timestamp}/scores").
		Methods(http.MethodPost).
		Name("POST /rounds/{timestamp}/scores").
		HandlerFunc(utils.WrapHandlerFunc(r.handleAddScores))
	sub.Path("/rounds/{timestamp}/complete").
		Methods(http.MethodPost).
		Name("POST /rounds/{timestamp}/complete").
		HandlerFunc(utils.WrapHandlerFunc(r.handleCompleteRound))
	sub.Path("/rounds/{timestamp}").
		Methods(http.MethodDelete).
		Name("DELETE /rounds/{timestamp}").
		HandlerFunc(utils.WrapHandlerFunc(r.handleCancelRound))
	sub.Path("/accounts/{beneficiary}/rewards").
		Methods(http.MethodGet).
		Name("GET /accounts/{beneficiary}/rewards").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetRewards))
	sub.Path("/accounts/{beneficiary}/claims").
		Methods(http.MethodPost).
		Name("POST /accounts/{beneficiary}/claims").
		HandlerFunc(utils.WrapHandlerFunc(r.handleClaimRewards))
	sub.Path("/accounts/{beneficiary}/claimed").
		Methods(http.MethodGet).
		Name("GET /accounts/{beneficiary}/claimed").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetClaimed))
	sub.Path("/claimed").
		Methods(http.MethodGet).
		Name("GET /claimed").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetClaimedTable))
	sub.Path("/state").
		Methods(http.MethodGet).
		Name("GET /state").
		HandlerFunc(utils.WrapHandlerFunc(r.handleViewState))
	sub.Path("/state").
		Methods(http.MethodPost).
		Name("POST /state").
		HandlerFunc(utils.WrapHandlerFunc(r.handleInitState))
}

func parseCaller(req *http.Request) (relay.Address, error) {
	caller, err := relay.ParseAddress(req.Header.Get(CallerHeader))
	if err != nil {
		return relay.Address{}, utils.BadRequest(errors.New("X-Caller has to be an address"))
	}
	return caller, nil
}

// commandError maps the engine's error taxonomy onto http statuses:
// permission failures are forbidden, missing rounds are not found, the rest
// are validation failures.
func commandError(err error) error {
	switch {
	case engine.IsPermission(err):
		return utils.Forbidden(err)
	case engine.IsNotFound(err):
		return utils.NotFound(err)
	default:
		return utils.BadRequest(err)
	}
}

// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynet/rewards/acl"
	"github.com/relaynet/rewards/engine"
	"github.com/relaynet/rewards/relay"
)

var (
	owner    = relay.MustParseAddress("0xf077b491b355e64048ce21e3a6fc4751eeea77fa")
	stranger = relay.MustParseAddress("0x5034aa590125b64023a0262112b98d72e3c8e40e")
	operator = relay.MustParseAddress("0x6d95e6dca01d109882fe1726a2fb9865fa41e7aa")
)

func newTestServer(t *testing.T) *httptest.Server {
	eng := engine.New(engine.Staking, acl.New(owner))
	router := mux.NewRouter()
	New(eng).Mount(router, "/rewards")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func httpDo(t *testing.T, method, url string, caller *relay.Address, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if caller != nil {
		req.Header.Set(CallerHeader, caller.String())
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(data)
}

func TestUpdateConfiguration(t *testing.T) {
	ts := newTestServer(t)

	status, _ := httpDo(t, http.MethodPost, ts.URL+"/rewards/configuration", &owner,
		`{"TokensPerSecond": "1000"}`)
	assert.Equal(t, http.StatusOK, status)

	status, body := httpDo(t, http.MethodGet, ts.URL+"/rewards/configuration", nil, "")
	assert.Equal(t, http.StatusOK, status)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &cfg))
	assert.Equal(t, "1000", cfg["TokensPerSecond"])
}

func TestUpdateConfigurationErrors(t *testing.T) {
	ts := newTestServer(t)

	// missing caller header
	status, body := httpDo(t, http.MethodPost, ts.URL+"/rewards/configuration", nil, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "X-Caller has to be an address")

	// caller without the capability
	status, body = httpDo(t, http.MethodPost, ts.URL+"/rewards/configuration", &stranger, `{}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "Permission denied")

	// validation failure
	status, body = httpDo(t, http.MethodPost, ts.URL+"/rewards/configuration", &owner,
		`{"TokensPerSecond": "-5"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "TokensPerSecond has to be a non-negative integer")
}

func TestRoundFlow(t *testing.T) {
	ts := newTestServer(t)

	status, _ := httpDo(t, http.MethodPost, ts.URL+"/rewards/configuration", &owner,
		`{"TokensPerSecond": "1000"}`)
	require.Equal(t, http.StatusOK, status)

	scores := `{"` + operator.String() + `": {"Staked": "1000", "Running": "1"}}`
	status, _ = httpDo(t, http.MethodPost, ts.URL+"/rewards/rounds/1000/scores", &owner, scores)
	require.Equal(t, http.StatusOK, status)

	status, body := httpDo(t, http.MethodGet, ts.URL+"/rewards/rounds", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"Pending": [1000]}`, body)

	status, body = httpDo(t, http.MethodPost, ts.URL+"/rewards/rounds/1000/complete", &owner, "")
	require.Equal(t, http.StatusOK, status)
	var completed map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &completed))
	assert.Equal(t, "1000", completed["Rewards"])

	status, body = httpDo(t, http.MethodGet,
		ts.URL+"/rewards/accounts/"+operator.String()+"/rewards", nil, "")
	assert.Equal(t, http.StatusOK, status)
	var view map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &view))
	assert.Equal(t, "1000", view["Rewarded"][operator.String()])
	assert.Empty(t, view["Claimed"])

	status, body = httpDo(t, http.MethodPost,
		ts.URL+"/rewards/accounts/"+operator.String()+"/claims", &operator, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"`+operator.String()+`": "1000"}`, body)

	status, body = httpDo(t, http.MethodGet,
		ts.URL+"/rewards/accounts/"+operator.String()+"/claimed", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"`+operator.String()+`": "1000"}`, body)

	status, body = httpDo(t, http.MethodGet, ts.URL+"/rewards/claimed", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"`+operator.String()+`": {"`+operator.String()+`": "1000"}}`, body)

	// the archived snapshot predates the claim
	status, body = httpDo(t, http.MethodGet,
		ts.URL+"/rewards/accounts/"+operator.String()+"/claimed?timestamp=1000", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{}`, body)

	status, body = httpDo(t, http.MethodGet,
		ts.URL+"/rewards/accounts/"+operator.String()+"/claimed?timestamp=999", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "No completed round for 999")
}

func TestCancelRound(t *testing.T) {
	ts := newTestServer(t)

	scores := `{"` + operator.String() + `": {"Staked": "1"}}`
	status, _ := httpDo(t, http.MethodPost, ts.URL+"/rewards/rounds/500/scores", &owner, scores)
	require.Equal(t, http.StatusOK, status)

	status, _ = httpDo(t, http.MethodDelete, ts.URL+"/rewards/rounds/500", &owner, "")
	assert.Equal(t, http.StatusOK, status)

	status, body := httpDo(t, http.MethodPost, ts.URL+"/rewards/rounds/500/complete", &owner, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "No pending round for 500")
}

func TestStateRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	scores := `{"` + operator.String() + `": {"Staked": "7", "Running": "1"}}`
	status, _ := httpDo(t, http.MethodPost, ts.URL+"/rewards/rounds/1000/scores", &owner, scores)
	require.Equal(t, http.StatusOK, status)

	status, snapshot := httpDo(t, http.MethodGet, ts.URL+"/rewards/state", nil, "")
	require.Equal(t, http.StatusOK, status)

	other := newTestServer(t)
	status, _ = httpDo(t, http.MethodPost, other.URL+"/rewards/state", &owner, snapshot)
	require.Equal(t, http.StatusOK, status)

	status, again := httpDo(t, http.MethodGet, other.URL+"/rewards/state", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, snapshot, again)
}

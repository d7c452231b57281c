package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"

	"github.com/nolandb/nanocol"
)

var rangeOps = map[string]nanocol.RangeOp{
	"$eq":      nanocol.RangeEq,
	"$aeq":     nanocol.RangeAeq,
	"$dteq":    nanocol.RangeDteq,
	"$gt":      nanocol.RangeGt,
	"$gte":     nanocol.RangeGte,
	"$lt":      nanocol.RangeLt,
	"$lte":     nanocol.RangeLte,
	"$between": nanocol.RangeBetween,
}

// Handler returns an http handler exposing a collection for local inspection:
//
//	GET    /ref/{id}                 - fetch a single document
//	DELETE /ref/{id}                 - remove a single document
//	GET    /range/{field}/{op}       - CalculateRange, value(s) via ?value=&upper=
//	GET    /checkindex/{field}       - CheckIndex, ?repair=true to rebuild
//	GET    /tail                     - websocket live-tail of insert/update/delete
func Handler(c *nanocol.Collection) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ref/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc := c.Get(id)
		if doc == nil {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(doc)
	}).Methods(http.MethodGet)

	router.HandleFunc("/ref/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := c.Remove(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodDelete)

	router.HandleFunc("/range/{field}/{op}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		q := r.URL.Query()
		op, ok := rangeOps[vars["op"]]
		if !ok {
			http.Error(w, "unknown range operator", http.StatusBadRequest)
			return
		}
		var upper any
		if raw := q.Get("upper"); raw != "" {
			upper = cast.ToFloat64(raw)
		}
		matches, err := c.CalculateRange(vars["field"], op, cast.ToFloat64(q.Get("value")), upper)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(matches)
	}).Methods(http.MethodGet)

	router.HandleFunc("/checkindex/{field}", func(w http.ResponseWriter, r *http.Request) {
		field := mux.Vars(r)["field"]
		repair := cast.ToBool(r.URL.Query().Get("repair"))
		ok := c.CheckIndex(field, nanocol.CheckIndexOpts{Repair: repair})
		json.NewEncoder(w).Encode(map[string]bool{"valid": ok})
	}).Methods(http.MethodGet)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	router.HandleFunc("/tail", tailHandler(c, upgrader)).Methods(http.MethodGet)

	return router
}

// tailHandler upgrades to a websocket and streams insert/update/delete events
// as they're published, until the client disconnects or the request context ends.
func tailHandler(c *nanocol.Collection, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		forward := func(channel string) func(ctx context.Context, body any) (bool, error) {
			return func(ctx context.Context, body any) (bool, error) {
				err := conn.WriteJSON(map[string]any{
					"channel": channel,
					"at":      time.Now().Format(time.RFC3339Nano),
					"body":    body,
				})
				return err == nil, nil
			}
		}

		for _, ch := range []string{nanocol.ChannelInsert, nanocol.ChannelUpdate, nanocol.ChannelDelete} {
			ch := ch
			go c.Subscribe(ctx, ch, forward(ch))
		}
		<-ctx.Done()
	}
}

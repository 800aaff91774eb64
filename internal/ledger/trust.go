package ledger

import "strconv"

// connect creates or refreshes the edge from -> to.
//
// An irrevocable live edge is left as is. A live revocable edge is reset to
// never expire, and upgraded when the caller asks for an irrevocable one.
// Creating an edge, or reviving an expired one, counts against the cap.
func (c *Contract) connect(tx *Tx, env Env, from, to Name, revocable bool, payer Name) error {
	e, ok := tx.Edge(from, to)
	if ok && e.Live(env.Now) {
		if !e.Revocable {
			return nil
		}
		e.Expiry = Never()
		e.Revocable = revocable
		tx.putEdge(from, e)
		return nil
	}

	if n := liveCount(tx, from, env.Now); n >= c.params.EdgeCap {
		return newErrorf(CodeEdgeCapExceeded,
			map[string]string{"from": string(from), "live": strconv.Itoa(n)},
			"%s already has %d live connections", from, n)
	}
	if !ok {
		e = Edge{Peer: to, Payer: payer}
	}
	e.Expiry = Never()
	e.Revocable = revocable
	tx.putEdge(from, e)
	return nil
}

// disconnect starts the grace period on a revocable edge. Calling it again
// restarts the period from now.
func (c *Contract) disconnect(tx *Tx, env Env, from, to Name) error {
	e, ok := tx.Edge(from, to)
	if !ok {
		return edgeNotFound(from, to)
	}
	if !e.Revocable {
		return newErrorf(CodeEdgeIrrevocable, map[string]string{"from": string(from), "to": string(to)},
			"connection %s -> %s is not revocable", from, to)
	}
	if !e.Live(env.Now) {
		return edgeExpired(from, to)
	}
	e.Expiry = ExpiresAt(env.Now.Add(c.params.Grace))
	tx.putEdge(from, e)
	return nil
}

// requireLiveEdge fails unless from -> to exists and is live at now.
func requireLiveEdge(v View, from, to Name, now Timestamp) error {
	e, ok := v.Edge(from, to)
	if !ok {
		return edgeNotFound(from, to)
	}
	if !e.Live(now) {
		return edgeExpired(from, to)
	}
	return nil
}

// liveCount counts from's outbound edges that are live at now.
func liveCount(v View, from Name, now Timestamp) int {
	n := 0
	v.EachEdge(from, func(e Edge) bool {
		if e.Live(now) {
			n++
		}
		return true
	})
	return n
}

func edgeNotFound(from, to Name) error {
	return newErrorf(CodeEdgeNotFound, map[string]string{"from": string(from), "to": string(to)},
		"connection %s -> %s does not exist", from, to)
}

func edgeExpired(from, to Name) error {
	return newErrorf(CodeEdgeExpired, map[string]string{"from": string(from), "to": string(to)},
		"connection %s -> %s expired", from, to)
}

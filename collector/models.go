package collector

// Population is the result of one merge cycle: summed counts across every
// master server that answered with a valid info document.
type Population struct {
	Servers int // total registered game servers
	Players int // total connected players
	Sources int // endpoints queried
	Failed  int // endpoints that failed to fetch or parse (each contributed zero)
}

// masterInfo is the subset of the master-server info document we care about.
// Extra fields in the response are ignored.
type masterInfo struct {
	Servers int `json:"servers"`
	Players int `json:"players"`
}

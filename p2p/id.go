package p2p

// ID is a hex-encoded or otherwise opaque identifier of a remote node. The
// sync queue keeps it next to every header so that an invalid chain can be
// traced back to the peer that sent it.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

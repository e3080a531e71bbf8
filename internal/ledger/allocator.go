package ledger

// NextID allocates the next origin id. The state's maximum moves immediately so
// two sources of one batch never share an id, even before either is committed.
func (s *State) NextID() int {
	s.maxID++
	return s.maxID
}

// Release hands back an id whose source produced no records. Only the most
// recent allocation can be released; anything older is left as is.
func (s *State) Release(id int) {
	if id != s.maxID || s.sourceIndex(id) >= 0 {
		return
	}
	s.maxID--
}

package rpapi

// If returns a stage that runs then when cond holds for the stack and els otherwise.
// A nil branch continues the chain.
func If(cond func(*Stack) bool, then, els StackFunc) StackFunc {
	return func(s *Stack) {
		f := els
		if cond(s) {
			f = then
		}
		if f == nil {
			s.Next()
			return
		}
		f(s)
	}
}

// HasPrimaryKey reports whether the request names an item, through the :id path
// parameter or the id query parameter. It stores the id in s.PrimaryKey.
func HasPrimaryKey(s *Stack) bool {
	id := s.Param("id")
	if id == "" {
		return false
	}
	s.PrimaryKey = id
	return true
}

package rpapi

// ParseBody is the default body parsing hook. It decodes the JSON body and converts
// it to the resource's internal form in s.Document. PATCH bodies are partial: absent
// fields keep their stored value and defaults are not applied.
func ParseBody(s *Stack) {
	body, err := s.ReadBody()
	if err != nil {
		s.Fail(err)
		return
	}
	doc, err := s.Resource.ToInternal(body, s.Route.Method() == "patch")
	if err != nil {
		s.Fail(err)
		return
	}
	s.Document = doc
	s.Next()
}

// URLParam returns a stage that stores the path parameter key under the stack value
// of the same name.
func URLParam(key string) Handler {
	return Func(func(s *Stack) {
		s.Set(key, s.C.Param(key))
		s.Next()
	}).Named(StageName("Req.URL", key))
}

// QueryParam returns a stage that stores the query parameter key under the stack
// value of the same name.
func QueryParam(key string) Handler {
	return Func(func(s *Stack) {
		s.Set(key, s.C.Query(key))
		s.Next()
	}).Named(StageName("Req.Query", key))
}

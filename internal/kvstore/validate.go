package kvstore

// Validator is a structural predicate applied to a parsed JSON value before
// it is trusted. Validators reject values that are syntactically valid JSON
// but the wrong shape, e.g. a string where an object was expected.
type Validator func(value any) bool

// IsString accepts JSON strings.
func IsString() Validator {
	return func(value any) bool {
		_, ok := value.(string)
		return ok
	}
}

// IsStringArray accepts arrays whose elements are all strings.
func IsStringArray() Validator {
	return IsArrayOf(IsString())
}

// IsArrayOf accepts arrays whose elements all satisfy elem.
func IsArrayOf(elem Validator) Validator {
	return func(value any) bool {
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !elem(item) {
				return false
			}
		}
		return true
	}
}

// IsObjectWithKeys accepts objects containing every one of the given keys.
func IsObjectWithKeys(keys ...string) Validator {
	return func(value any) bool {
		object, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for _, key := range keys {
			if _, present := object[key]; !present {
				return false
			}
		}
		return true
	}
}

// IsOneOf accepts JSON strings drawn from an enumerated set.
func IsOneOf(values ...string) Validator {
	allowed := make(map[string]struct{}, len(values))
	for _, value := range values {
		allowed[value] = struct{}{}
	}
	return func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, ok = allowed[s]
		return ok
	}
}

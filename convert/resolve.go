package convert

import "rulemapper/fieldpath"

// resolve walks path through obj one segment at a time. A missing segment,
// or a nil intermediate value, resolves to absent without an error.
func resolve(acc Accessor, obj any, path fieldpath.Path) (any, bool, error) {
	if obj == nil {
		return nil, false, nil
	}

	if path.IsSelf() {
		return obj, true, nil
	}

	cur := obj

	for i, seg := range path.Segments() {
		if i > 0 && cur == nil {
			return nil, false, nil
		}

		v, ok, err := acc.Get(cur, seg)
		if err != nil {
			return nil, false, err
		}

		if !ok {
			return nil, false, nil
		}

		cur = v
	}

	return cur, true, nil
}

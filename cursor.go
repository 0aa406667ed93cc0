package fieldsync

// TransformInsert moves cursor across an insertion of n code units at pos.
// A cursor at or before pos stays put.
func TransformInsert(cursor, pos, n int) int {
	if pos < cursor {
		return cursor + n
	}
	return cursor
}

// TransformRemove moves cursor across a removal of length code units at pos.
// A cursor inside the removed range collapses to pos.
func TransformRemove(cursor, pos, length int) int {
	if pos < cursor {
		return cursor - min(length, cursor-pos)
	}
	return cursor
}

package registry

// Op is a logical library operation the pass emits calls to.
type Op int

const (
	// OpElementsOf iterates a value that is not an iterator record.
	OpElementsOf Op = iota
	OpToFollower
	OpToFollowerZip
	OpToFastFollower
	OpToFastFollowerZip
	OpGetIterator
	OpGetIteratorZip
	OpFreeIterator
	// OpIteratorIndex yields the index type of an iterator handle.
	OpIteratorIndex
	OpStaticFastFollowCheck
	OpStaticFastFollowCheckZip
	OpDynamicFastFollowCheck
	OpDynamicFastFollowCheckZip
	// OpTrivialLeader is the one-descriptor leader of the zippered-serial fallback.
	OpTrivialLeader
	OpIteratorIndexType
	OpIteratorIndexTypeZip

	numOps
)

// Entry binds an Op to the function name implementing it.
type Entry struct {
	Op Op
	// Key is the stable name used in entry-point specifications.
	Key string
	// Name is the library function name.
	Name string
}

// DefaultEntries are the library entry points.
var DefaultEntries = []Entry{
	{OpElementsOf, "elements-of", "these"},
	{OpToFollower, "to-follower", "_toFollower"},
	{OpToFollowerZip, "to-follower-zip", "_toFollowerZip"},
	{OpToFastFollower, "to-fast-follower", "_toFastFollower"},
	{OpToFastFollowerZip, "to-fast-follower-zip", "_toFastFollowerZip"},
	{OpGetIterator, "get-iterator", "_getIterator"},
	{OpGetIteratorZip, "get-iterator-zip", "_getIteratorZip"},
	{OpFreeIterator, "free-iterator", "_freeIterator"},
	{OpIteratorIndex, "iterator-index", "iteratorIndex"},
	{OpStaticFastFollowCheck, "static-fast-follow-check", "chpl__staticFastFollowCheck"},
	{OpStaticFastFollowCheckZip, "static-fast-follow-check-zip", "chpl__staticFastFollowCheckZip"},
	{OpDynamicFastFollowCheck, "dynamic-fast-follow-check", "chpl__dynamicFastFollowCheck"},
	{OpDynamicFastFollowCheckZip, "dynamic-fast-follow-check-zip", "chpl__dynamicFastFollowCheckZip"},
	{OpTrivialLeader, "trivial-leader", "chpl_trivialLeader"},
	{OpIteratorIndexType, "iterator-index-type", "iteratorIndexType"},
	{OpIteratorIndexTypeZip, "iterator-index-type-zip", "iteratorIndexTypeZip"},
}

// FollowerOps returns the to-follower and get-iterator ops for the given
// follower shape.
func FollowerOps(fast, zippered bool) (toFollower, getIterator Op) {
	getIterator = OpGetIterator
	if zippered {
		getIterator = OpGetIteratorZip
	}
	switch {
	case fast && zippered:
		toFollower = OpToFastFollowerZip
	case fast:
		toFollower = OpToFastFollower
	case zippered:
		toFollower = OpToFollowerZip
	default:
		toFollower = OpToFollower
	}
	return toFollower, getIterator
}

// FastFollowCheckOps returns the static and dynamic check ops.
func FastFollowCheckOps(zippered bool) (static, dynamic Op) {
	if zippered {
		return OpStaticFastFollowCheckZip, OpDynamicFastFollowCheckZip
	}
	return OpStaticFastFollowCheck, OpDynamicFastFollowCheck
}

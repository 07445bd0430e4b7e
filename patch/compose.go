package patch

// Compose returns the patch equivalent to applying p1 and then p2 to the
// same base document: for every base, Apply(base, Compose(p1, p2)) equals
// Apply(Apply(base, p1), p2).
//
// Operations from p2 supersede earlier operations touching the same path or
// anything below it. When both patches touch exactly the same path the kinds
// are merged so the composed patch stays valid against the original base:
//
//	add + replace  -> add (the base still lacks the path)
//	add + remove   -> nothing (the path never existed in the base)
//	remove + add   -> replace (the path existed in the base all along)
//	x + remove     -> remove
//	x + add/replace -> last value wins
func Compose(p1, p2 Patch) Patch {
	out := make(Patch, 0, len(p1)+len(p2))
	for _, op := range p1 {
		out = append(out, op.Clone())
	}

	for _, op2 := range p2 {
		// Вырезаем перекрытые операции; запоминаем последнюю с тем же путем
		var prior *Operation
		kept := out[:0]
		for i := range out {
			op := out[i]
			if op.Path == op2.Path {
				prior = &op
				continue
			}
			if isDescendant(op.Path, op2.Path) {
				continue
			}
			kept = append(kept, op)
		}
		out = kept

		merged := op2.Clone()
		if prior != nil {
			switch {
			case prior.Op == OpAdd && merged.Op == OpReplace:
				merged.Op = OpAdd
			case prior.Op == OpAdd && merged.Op == OpRemove:
				continue
			case prior.Op == OpRemove && merged.Op == OpAdd:
				merged.Op = OpReplace
			}
		}
		out = append(out, merged)
	}
	return out
}

// ComposeAll folds a sequence of patches left to right into one patch
func ComposeAll(patches []Patch) Patch {
	out := Patch{}
	for _, p := range patches {
		out = Compose(out, p)
	}
	return out
}

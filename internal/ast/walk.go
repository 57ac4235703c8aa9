package ast

// Inspect traverses the subtree rooted at n in depth-first order, calling f
// for each node. If f returns false for a node, its children are skipped.
// Blocks, statements, expressions, and contracts are visited; type
// expressions are not (rewrite passes walk those by hand).
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *Contract:
		Inspect(n.Expr, f)

	// statements
	case *Let:
		Inspect(n.Value, f)
	case *Assign:
		Inspect(n.Value, f)
	case *FieldAssign:
		Inspect(n.Object, f)
		Inspect(n.Value, f)
	case *IndexAssign:
		Inspect(n.Object, f)
		Inspect(n.Idx, f)
		Inspect(n.Value, f)
	case *Return:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *If:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *While:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	case *For:
		Inspect(n.Iterable, f)
		Inspect(n.Body, f)
	case *Match:
		Inspect(n.Scrutinee, f)
		for _, arm := range n.Arms {
			Inspect(arm.Body, f)
		}
	case *Raise:
		for _, fi := range n.Fields {
			Inspect(fi.Value, f)
		}
	case *Assert:
		Inspect(n.Cond, f)
	case *ExprStmt:
		Inspect(n.Value, f)
	case *LetChan:
		if n.Capacity != nil {
			Inspect(n.Capacity, f)
		}
	case *Select:
		for _, arm := range n.Arms {
			switch op := arm.Op.(type) {
			case *SelectRecv:
				Inspect(op.Channel, f)
			case *SelectSend:
				Inspect(op.Channel, f)
				Inspect(op.Value, f)
			}
			Inspect(arm.Body, f)
		}
		if n.Default != nil {
			Inspect(n.Default, f)
		}
	case *Scope:
		for _, seed := range n.Seeds {
			Inspect(seed, f)
		}
		Inspect(n.Body, f)
	case *Yield:
		Inspect(n.Value, f)
	case *Break, *Continue:

	// expressions
	case *StringInterp:
		for _, p := range n.Parts {
			if p.Expr != nil {
				Inspect(p.Expr, f)
			}
		}
	case *BinOp:
		Inspect(n.LHS, f)
		Inspect(n.RHS, f)
	case *UnaryOp:
		Inspect(n.Operand, f)
	case *Cast:
		Inspect(n.Value, f)
	case *Call:
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *MethodCall:
		Inspect(n.Object, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *StaticTraitCall:
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *FieldAccess:
		Inspect(n.Object, f)
	case *StructLit:
		for _, fi := range n.Fields {
			Inspect(fi.Value, f)
		}
	case *ArrayLit:
		for _, e := range n.Elements {
			Inspect(e, f)
		}
	case *MapLit:
		for _, en := range n.Entries {
			Inspect(en.Key, f)
			Inspect(en.Value, f)
		}
	case *SetLit:
		for _, e := range n.Elements {
			Inspect(e, f)
		}
	case *Index:
		Inspect(n.Object, f)
		Inspect(n.Idx, f)
	case *EnumData:
		for _, fi := range n.Fields {
			Inspect(fi.Value, f)
		}
	case *RangeExpr:
		Inspect(n.Start, f)
		Inspect(n.End, f)
	case *Closure:
		Inspect(n.Body, f)
	case *Propagate:
		Inspect(n.Value, f)
	case *NullPropagate:
		Inspect(n.Value, f)
	case *Catch:
		Inspect(n.Value, f)
		switch h := n.Handler.(type) {
		case *CatchShorthand:
			Inspect(h.Fallback, f)
		case *CatchWildcard:
			Inspect(h.Body, f)
		}
	case *Spawn:
		Inspect(n.Call, f)
	case *IfExpr:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		Inspect(n.Else, f)
	case *MatchExpr:
		Inspect(n.Scrutinee, f)
		for _, arm := range n.Arms {
			Inspect(arm.Value, f)
		}
	}
}

// CollectIdents gathers every Ident name referenced under n.
func CollectIdents(n Node, into map[string]bool) {
	Inspect(n, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			into[id.Name] = true
		}
		return true
	})
}

// ContainsPropagate reports whether any `!` propagation appears under n,
// including inside closure bodies.
func ContainsPropagate(n Node) bool {
	found := false
	Inspect(n, func(n Node) bool {
		if _, ok := n.(*Propagate); ok {
			found = true
		}
		return !found
	})
	return found
}

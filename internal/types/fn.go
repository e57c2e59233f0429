package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// FnInfo stores metadata for function types.
//
// When IndirectResult is set the callee returns through a caller-allocated
// slot passed as the leading argument (of KindRef on Result); Params lists
// only the declared parameters, never the slot.
type FnInfo struct {
	Params         []TypeID
	Result         TypeID
	IndirectResult bool
}

// RegisterFn creates or finds a function type.
func (in *Interner) RegisterFn(params []TypeID, result TypeID, indirect bool) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindFn {
			continue
		}
		if int(tt.Payload) >= len(in.fns) {
			continue
		}
		info := in.fns[tt.Payload]
		if info.Result == result && info.IndirectResult == indirect && slices.Equal(info.Params, params) {
			return id
		}
	}
	slot := in.appendFnInfo(FnInfo{
		Params:         cloneTypeIDs(params),
		Result:         result,
		IndirectResult: indirect,
	})
	return in.internRaw(Type{Kind: KindFn, Payload: slot})
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFn {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

// ParamIsNonCapturing reports whether argument position arg of a call to a
// function of type fnType receives an address the callee will not retain
// past the call: the indirect-result slot, or a by-reference parameter.
func (in *Interner) ParamIsNonCapturing(fnType TypeID, arg int) bool {
	info, ok := in.FnInfo(fnType)
	if !ok {
		return false
	}
	if info.IndirectResult {
		if arg == 0 {
			return true
		}
		arg--
	}
	if arg < 0 || arg >= len(info.Params) {
		return false
	}
	pt, ok := in.Lookup(info.Params[arg])
	return ok && pt.Kind == KindRef
}

func (in *Interner) appendFnInfo(info FnInfo) uint32 {
	in.fns = append(in.fns, FnInfo{
		Params:         cloneTypeIDs(info.Params),
		Result:         info.Result,
		IndirectResult: info.IndirectResult,
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}

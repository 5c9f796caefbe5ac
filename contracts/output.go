package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Output extracts the idx-th return value of a call as T. Tuple values
// decoded by go-ethereum arrive as anonymous structs and are converted
// field by field, the way generated bindings do.
func Output[T any](out []any, idx int) (res T, err error) {
	if idx >= len(out) {
		return res, fmt.Errorf("call returned %d values, missing output %d", len(out), idx)
	}
	if v, ok := out[idx].(T); ok {
		return v, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cannot convert output %d of type %T to %T: %v", idx, out[idx], res, r)
		}
	}()
	converted, ok := abi.ConvertType(out[idx], new(T)).(*T)
	if !ok {
		return res, fmt.Errorf("cannot convert output %d of type %T to %T", idx, out[idx], res)
	}
	return *converted, nil
}

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package objecthash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// joinChar separates the components of a source string.
const joinChar = "\x00"

var (
	// ErrNilValue is returned when a structured value contains nil.
	ErrNilValue = errors.New("nil value in structured data")

	// ErrEmptyArray is returned when a structured value contains an
	// empty array.
	ErrEmptyArray = errors.New("empty array in structured data")

	// ErrEmptyObject is returned when a structured value contains an
	// object without keys.
	ErrEmptyObject = errors.New("empty object in structured data")
)

// SourceString returns the stable serialization of a structured value that
// all content-addressed identifiers are computed over.
//
// Strings, numbers and booleans are emitted as a type tag followed by their
// textual value, arrays are bracketed and objects are emitted as their keys in
// sorted order, each followed by its value.  All components are joined with a
// NUL byte.  The supported value types are the ones produced by
// encoding/json when decoding into interface{} plus the integer kinds and
// string slices/maps used when definitions are built in Go.
func SourceString(v interface{}) (string, error) {
	var components []string
	if err := extractComponents(v, &components); err != nil {
		return "", err
	}
	return strings.Join(components, joinChar), nil
}

func extractComponents(v interface{}, components *[]string) error {
	if v == nil {
		return ErrNilValue
	}

	switch t := v.(type) {
	case string:
		*components = append(*components, "s", t)
		return nil

	case bool:
		*components = append(*components, "b", strconv.FormatBool(t))
		return nil

	case float64:
		*components = append(*components, "n",
			strconv.FormatFloat(t, 'f', -1, 64))
		return nil

	case []interface{}:
		if len(t) == 0 {
			return ErrEmptyArray
		}
		*components = append(*components, "[")
		for _, elem := range t {
			if err := extractComponents(elem, components); err != nil {
				return err
			}
		}
		*components = append(*components, "]")
		return nil

	case map[string]interface{}:
		if len(t) == 0 {
			return ErrEmptyObject
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			*components = append(*components, k)
			err := extractComponents(t[k], components)
			if err != nil {
				return err
			}
		}
		return nil
	}

	// Fall back to reflection for the remaining integer kinds and typed
	// slices and maps.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:

		*components = append(*components, "n",
			strconv.FormatInt(rv.Int(), 10))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:

		*components = append(*components, "n",
			strconv.FormatUint(rv.Uint(), 10))
		return nil

	case reflect.Float32:
		*components = append(*components, "n",
			strconv.FormatFloat(rv.Float(), 'f', -1, 32))
		return nil

	case reflect.String:
		*components = append(*components, "s", rv.String())
		return nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return ErrNilValue
		}
		elems := make([]interface{}, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return extractComponents(elems, components)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unsupported map key type %v",
				rv.Type().Key())
		}
		if rv.IsNil() {
			return ErrNilValue
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return extractComponents(m, components)

	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return ErrNilValue
		}
		return extractComponents(rv.Elem().Interface(), components)
	}

	return fmt.Errorf("unsupported value of type %T in structured data", v)
}

// Chash160 returns the checksummed 160-bit content-addressed identifier of
// the structured value v.
func Chash160(v interface{}) (string, error) {
	src, err := SourceString(v)
	if err != nil {
		return "", err
	}
	return chash160([]byte(src)), nil
}

// DeviceAddress returns the identifier of a device given its base64 encoded
// compressed public key.  Device addresses are prefixed with "0" so they
// can never collide with a payment address.
func DeviceAddress(pubKeyB64 string) (string, error) {
	if len(pubKeyB64) != 44 {
		return "", fmt.Errorf("invalid device public key length %d",
			len(pubKeyB64))
	}
	id, err := Chash160(pubKeyB64)
	if err != nil {
		return "", err
	}
	return "0" + id, nil
}

// Sha256B64 returns the base64 encoded SHA-256 digest of the source string of
// v.  It is the hash that proposal signatures commit to.
func Sha256B64(v interface{}) (string, error) {
	src, err := SourceString(v)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(src))
	return base64.StdEncoding.EncodeToString(digest[:]), nil
}

package ilerr

import (
	"fmt"
	"log/slog"
	"slices"
)

type Errors struct {
	errs []IleError
}

func (r *Errors) With(err ...IleError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []IleError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

// HasCode reports whether any of the errors has the given code
func (r *Errors) HasCode(code ErrCode) bool {
	return slices.ContainsFunc(r.Errors(), func(e IleError) bool {
		return e.Code() == code
	})
}

// Error makes Errors usable as an error, listing every message with its code
func (r *Errors) Error() string {
	if !r.HasError() {
		return "no errors"
	}
	s := ""
	for i, e := range r.errs {
		if i > 0 {
			s += "\n"
		}
		s += FormatWithCode(e)
	}
	return s
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}

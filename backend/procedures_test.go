package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsInt(t *testing.T) {
	args := Args{"a": 3, "b": float64(7), "c": 2.5, "d": "x"}

	v, err := args.Int("a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = args.Int("b")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = args.Int("c")
	assert.Error(t, err)
	_, err = args.Int("d")
	assert.Error(t, err)
	_, err = args.Int("missing")
	assert.Error(t, err)
}

func TestSetDefaultRetention(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	out, err := l.CallProcedure(ctx, ProcSetDefaultRetention, Args{"_days": 30})
	require.NoError(t, err)
	assert.Equal(t, 30, out)

	setting, err := l.GetRetentionSetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, setting.DefaultRetentionDays)

	for _, days := range []int{0, -1, MaxRetentionDays + 1} {
		_, err := l.CallProcedure(ctx, ProcSetDefaultRetention, Args{"_days": days})
		require.Error(t, err)
		assert.Equal(t, KindProcedure, KindOf(err))
	}

	setting, err = l.GetRetentionSetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, setting.DefaultRetentionDays)
}

func TestSetDefaultRetentionKeepsExistingHorizons(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	id := createSubmission(t, l, "111", "")
	_, err := l.CallProcedure(ctx, ProcSetSubmissionRetention, Args{"_id": id, "_days": 7})
	require.NoError(t, err)

	_, err = l.CallProcedure(ctx, ProcSetDefaultRetention, Args{"_days": 30})
	require.NoError(t, err)

	sub, err := l.GetSubmission(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sub.AutoDeleteAt)
	assert.True(t, testNow.Add(7*24*time.Hour).Equal(*sub.AutoDeleteAt))
}

func TestSetSubmissionRetentionReturnsTimestamp(t *testing.T) {
	l := newTestLocal(t)
	id := createSubmission(t, l, "111", "")

	out, err := l.CallProcedure(context.Background(), ProcSetSubmissionRetention, Args{"_id": id, "_days": 30})
	require.NoError(t, err)
	at, ok := out.(time.Time)
	require.True(t, ok)
	assert.True(t, testNow.Add(30*24*time.Hour).Equal(at))

	_, err = l.CallProcedure(context.Background(), ProcSetSubmissionRetention, Args{"_id": "missing", "_days": 30})
	assert.True(t, IsNotFound(err))
}

func TestCreateSubmissionMulti(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	id := createSubmission(t, l, "111", "a@example.com", "request-images/a.jpg", "request-images/b.jpg")
	sub, err := l.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(sub.Status))
	assert.Nil(t, sub.AutoDeleteAt)
	assert.Equal(t, "a@example.com", sub.Email)

	out, err := l.CallProcedure(ctx, ProcCreateSubmissionMulti, Args{
		"_name":                    "Bo",
		"_mobile":                  "222",
		"_address":                 "2 Loop Rd",
		"_product_details":         "Fridge",
		"_image_paths":             []any{"request-images/c.jpg"},
		"_apply_default_retention": true,
	})
	require.NoError(t, err)
	sub, err = l.GetSubmission(ctx, out.(string))
	require.NoError(t, err)
	require.NotNil(t, sub.AutoDeleteAt)
	assert.True(t, testNow.Add(90*24*time.Hour).Equal(*sub.AutoDeleteAt))
	assert.Equal(t, "", sub.Email)
}

func TestCreateSubmissionMultiValidates(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	base := func() Args {
		return Args{
			"_name":            "Ada",
			"_mobile":          "111",
			"_address":         "1 Loop Rd",
			"_product_details": "Old laptop",
			"_image_paths":     []string{"request-images/a.jpg"},
		}
	}

	cases := map[string]func(Args){
		"missing name":   func(a Args) { a["_name"] = "  " },
		"missing mobile": func(a Args) { delete(a, "_mobile") },
		"no images":      func(a Args) { a["_image_paths"] = []string{} },
		"blank image":    func(a Args) { a["_image_paths"] = []string{""} },
		"too many images": func(a Args) {
			a["_image_paths"] = []string{"a", "b", "c", "d", "e", "f", "g"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			args := base()
			mutate(args)
			_, err := l.CallProcedure(ctx, ProcCreateSubmissionMulti, args)
			require.Error(t, err)
			assert.Equal(t, KindProcedure, KindOf(err))
		})
	}

	all, err := l.ListSubmissions(ctx, SubmissionQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUnknownProcedure(t *testing.T) {
	l := newTestLocal(t)
	_, err := l.CallProcedure(context.Background(), "rpc_nope", nil)
	assert.Equal(t, KindProcedure, KindOf(err))
}

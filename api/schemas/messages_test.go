package schemas_test

import (
	"errors"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// -- Test Cases: Construction --

func TestNewMessage_Validation(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		kind     schemas.MessageKind
		sender   schemas.Role
		receiver schemas.Role
		payload  schemas.Event
		field    string
	}{
		{"unknown kind", "gossip", schemas.RoleParser, schemas.Broadcast, schemas.DesignStarted{}, "kind"},
		{"unknown sender", schemas.KindNotification, "janitor", schemas.Broadcast, schemas.DesignStarted{}, "sender"},
		{"unknown receiver", schemas.KindRequest, schemas.RoleParser, "janitor", schemas.DesignStarted{}, "receiver"},
		{"nil payload", schemas.KindRequest, schemas.RoleParser, schemas.RoleDesign, nil, "payload"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schemas.NewMessage(tt.kind, tt.sender, tt.receiver, tt.payload, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, schemas.ErrValidation)

			var vErr *schemas.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNewMessage_CopiesMetadata(t *testing.T) {
	t.Parallel()
	md := map[string]string{"run_id": "r-1"}
	msg, err := schemas.NewMessage(schemas.KindNotification, schemas.RoleTracking, schemas.Broadcast, schemas.APICall{Model: "m", Tokens: 3}, md)
	require.NoError(t, err)

	md["run_id"] = "mutated"
	assert.Equal(t, "r-1", msg.Metadata()["run_id"], "caller mutation must not leak into the message")

	got := msg.Metadata()
	got["run_id"] = "also mutated"
	assert.Equal(t, "r-1", msg.Metadata()["run_id"], "returned metadata must be a copy")

	assert.True(t, msg.IsBroadcast())
	assert.NotEmpty(t, msg.ID())
	assert.False(t, msg.Timestamp().IsZero())
}

func TestNewMessage_EmptyMetadataByDefault(t *testing.T) {
	t.Parallel()
	msg, err := schemas.NewMessage(schemas.KindRequest, schemas.RoleUIGen, schemas.RoleParser, schemas.Request{Action: "parse"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, msg.Metadata())
	assert.Empty(t, msg.Metadata())
	assert.Equal(t, schemas.RoleParser, msg.Receiver())
}

// -- Test Cases: Wire Encoding --

func TestMessage_MarshalJSON(t *testing.T) {
	t.Parallel()
	msg, err := schemas.NewMessage(schemas.KindNotification, schemas.RoleParser, schemas.Broadcast,
		schemas.ParsingStarted{InputLength: 42}, nil)
	require.NoError(t, err)

	raw, err := jsoniter.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(raw, &decoded))
	assert.Equal(t, "notification", decoded["kind"])
	assert.Equal(t, "parser", decoded["sender"])
	assert.Nil(t, decoded["receiver"], "broadcast messages have a null receiver")

	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, schemas.EventParsingStarted, payload["event"])
	assert.EqualValues(t, 42, payload["input_length"])
}

func TestEncodeEvent_Generic(t *testing.T) {
	t.Parallel()
	raw, err := schemas.EncodeEvent(schemas.Generic{Name: "custom", Fields: map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"custom","k":"v"}`, string(raw))
}

// -- Test Cases: Vocabulary --

func TestRoles(t *testing.T) {
	t.Parallel()
	roles := schemas.Roles()
	assert.Len(t, roles, 6)
	for _, r := range roles {
		assert.True(t, r.Valid(), "role %s should be valid", r)
	}
	assert.False(t, schemas.Broadcast.Valid(), "broadcast is not a mailbox")
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()
	cause := errors.New("quota exceeded")

	genErr := &schemas.GenerationError{Model: "gemini", Err: cause}
	assert.ErrorIs(t, genErr, schemas.ErrGeneration)
	assert.ErrorIs(t, genErr, cause)

	stErr := &schemas.StorageError{Op: "write", Path: "a.py", Err: cause}
	assert.ErrorIs(t, stErr, schemas.ErrStorage)
	assert.Contains(t, stErr.Error(), "a.py")

	rtErr := &schemas.RoutingError{Receiver: "nobody"}
	assert.ErrorIs(t, rtErr, schemas.ErrRouting)
	assert.NotErrorIs(t, rtErr, schemas.ErrValidation)
}

func TestArtifactValidation(t *testing.T) {
	t.Parallel()
	spec := schemas.RequirementSpec{
		Languages:      []string{"French"},
		Tenses:         []string{"present"},
		Persons:        []string{"first person singular"},
		Moods:          []string{"indicative"},
		DatasetSources: []string{},
	}
	assert.NoError(t, spec.Validate())

	spec.Tenses = nil
	assert.ErrorIs(t, spec.Validate(), schemas.ErrValidation)

	design := schemas.DesignSpec{Architecture: "x", Modules: []string{}, DataSchema: map[string]any{}, Dependencies: []string{}, ImplementationNotes: "n"}
	assert.NoError(t, design.Validate())
	design.DataSchema = nil
	assert.ErrorIs(t, design.Validate(), schemas.ErrValidation)
	design.DataSchema = map[string]any{}
	design.ImplementationNotes = ""
	var verr *schemas.ValidationError
	require.ErrorAs(t, design.Validate(), &verr)
	assert.Equal(t, "implementation_notes", verr.Field)

	assert.Error(t, schemas.GeneratedCode{Filename: "a.py"}.Validate())
}

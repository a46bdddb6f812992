package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const callableKey = "callable"

// callableRequest is the wrapper used by callable-function clients
type callableRequest struct {
	Data json.RawMessage `json:"data"`
}

// bindPayload decodes the request body into out, unwrapping {"data": {...}} when present,
// and runs the binding validator over the result. An empty body decodes to the zero value.
func bindPayload(c *gin.Context, out any) error {
	raw, err := c.GetRawData()
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 {
		var wrapper callableRequest
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return fmt.Errorf("malformed json: %w", err)
		}
		if len(wrapper.Data) > 0 && !bytes.Equal(wrapper.Data, []byte("null")) {
			raw = wrapper.Data
			c.Set(callableKey, true)
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
	}

	if binding.Validator == nil {
		return errors.New("no validator configured")
	}
	return binding.Validator.ValidateStruct(out)
}

// respond writes body, wrapped as {"result": body} for callable requests
func respond(c *gin.Context, status int, body any) {
	if c.GetBool(callableKey) {
		c.JSON(status, gin.H{"result": body})
		return
	}
	c.JSON(status, body)
}

// signatureList accepts either a list of hex strings or a list of
// {"keyId": n, "signature": "..."} objects as produced by wallet libraries.
type signatureList struct {
	KeyIDs     []int
	Signatures []string
}

type composedSignature struct {
	Addr      string `json:"addr"`
	KeyID     int    `json:"keyId"`
	Signature string `json:"signature"`
}

func (s *signatureList) UnmarshalJSON(data []byte) error {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Signatures = plain
		return nil
	}

	var composed []composedSignature
	if err := json.Unmarshal(data, &composed); err != nil {
		return fmt.Errorf("signatures must be strings or signature objects: %w", err)
	}
	s.KeyIDs = make([]int, len(composed))
	s.Signatures = make([]string, len(composed))
	for i, cs := range composed {
		s.KeyIDs[i] = cs.KeyID
		s.Signatures[i] = cs.Signature
	}
	return nil
}

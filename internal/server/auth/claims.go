package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim types carried by every access token.
const (
	ClaimNameIdentifier = "nameid"
	ClaimName           = "unique_name"
)

// registered claims are owned by the signer and never copied from a ClaimSet.
var registeredClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
}

// Claim is a single (type, value) fact about the authenticated subject.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimSet is an ordered collection of claims.
type ClaimSet []Claim

// NewClaimSet returns the minimal claim set for a user.
func NewClaimSet(userID, username string) ClaimSet {
	return ClaimSet{
		{Type: ClaimNameIdentifier, Value: userID},
		{Type: ClaimName, Value: username},
	}
}

// First returns the value of the first claim of type typ.
func (cs ClaimSet) First(typ string) (string, bool) {
	for _, c := range cs {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// withoutRegistered drops iss/sub/aud/exp/nbf/iat/jti.
func (cs ClaimSet) withoutRegistered() ClaimSet {
	out := make(ClaimSet, 0, len(cs))
	for _, c := range cs {
		if _, ok := registeredClaims[c.Type]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Principal is the identity recovered from a verified access token.
type Principal struct {
	Claims    ClaimSet
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// UserID returns the nameid claim, or "" when absent.
func (p *Principal) UserID() string {
	v, _ := p.Claims.First(ClaimNameIdentifier)
	return v
}

// Username returns the unique_name claim, or "" when absent.
func (p *Principal) Username() string {
	v, _ := p.Claims.First(ClaimName)
	return v
}

// AccessToken is a signed, serialized bearer credential.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// tokenClaims is the JWT payload: registered claims followed by the private
// claims in ClaimSet order. Repeated claim types are encoded as arrays.
type tokenClaims struct {
	jwt.RegisteredClaims
	Private ClaimSet
}

func (c tokenClaims) MarshalJSON() ([]byte, error) {
	reg, err := json.Marshal(c.RegisteredClaims)
	if err != nil {
		return nil, err
	}

	var order []string
	grouped := make(map[string][]string)
	for _, cl := range c.Private {
		if _, seen := grouped[cl.Type]; !seen {
			order = append(order, cl.Type)
		}
		grouped[cl.Type] = append(grouped[cl.Type], cl.Value)
	}

	var buf bytes.Buffer
	buf.Write(bytes.TrimSuffix(reg, []byte("}")))
	first := len(reg) <= 2
	for _, typ := range order {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		k, _ := json.Marshal(typ)
		buf.Write(k)
		buf.WriteByte(':')

		var v []byte
		if vals := grouped[typ]; len(vals) == 1 {
			v, err = json.Marshal(vals[0])
		} else {
			v, err = json.Marshal(vals)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *tokenClaims) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &c.RegisteredClaims); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("claims: expected object")
	}

	c.Private = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if _, ok := registeredClaims[key]; ok {
			continue
		}

		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			c.Private = append(c.Private, Claim{Type: key, Value: single})
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			for _, v := range many {
				c.Private = append(c.Private, Claim{Type: key, Value: v})
			}
			continue
		}
		return fmt.Errorf("claims: unsupported value for %q", key)
	}
	return nil
}

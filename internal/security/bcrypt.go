package security

import "golang.org/x/crypto/bcrypt"

type BcryptEncoder struct {
	cost int
}

func NewBcryptEncoder() *BcryptEncoder {
	return &BcryptEncoder{cost: bcrypt.DefaultCost}
}

func (e *BcryptEncoder) Hash(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (e *BcryptEncoder) Verify(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

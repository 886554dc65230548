package model

// KeyFile represents the encrypted identity keyfile structure (.gid)
type KeyFile struct {
	Network    string `json:"network"`
	Address    string `json:"address"`
	QR         string `json:"QR"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// IdentityData represents decrypted identity secret material
type IdentityData struct {
	PrivateKey []byte `json:"privateKey"` // 64 bytes ed25519 key (stored as base64 in JSON)
	CreatedAt  string `json:"createdAt"`
}

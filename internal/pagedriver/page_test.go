package pagedriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURLAcceptsHTTPS(t *testing.T) {
	p := &Page{}
	assert.NoError(t, p.validateURL("https://example.com/scene"))
}

func TestValidateURLAcceptsLoopback(t *testing.T) {
	p := &Page{}
	assert.NoError(t, p.validateURL("http://127.0.0.1:8080/scene"))
	assert.NoError(t, p.validateURL("http://localhost:8080/scene"))
}

func TestValidateURLRejectsPlainHTTPRemote(t *testing.T) {
	p := &Page{}
	assert.Error(t, p.validateURL("http://example.com/scene"))
}

func TestValidateURLAllowsUnsafeWhenOptedIn(t *testing.T) {
	p := &Page{allowUnsafeContext: true}
	assert.NoError(t, p.validateURL("http://example.com/scene"))
}

func TestValidateURLRejectsMalformedURL(t *testing.T) {
	p := &Page{}
	assert.Error(t, p.validateURL("://not-a-url"))
}

package dkls23_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDKLS23(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DKLS23 Threshold Signing Suite")
}

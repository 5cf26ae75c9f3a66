// Package mocks holds testify mocks of the interfaces consumed by the
// transport layer.
package mocks

import (
	"context"
	"net"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/memberpass/internal/model"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register[M interface {
	Test(mock.TestingT)
	AssertExpectations(mock.TestingT) bool
}](t testingT, m M) M {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SecurityLayer is a mock of model.SecurityLayer.
type SecurityLayer struct {
	mock.Mock
}

func NewSecurityLayer(t testingT) *SecurityLayer {
	return register(t, &SecurityLayer{})
}

func (_m *SecurityLayer) Listen(protocol, addr string) (net.Listener, error) {
	ret := _m.Called(protocol, addr)
	ln, _ := ret.Get(0).(net.Listener)
	return ln, ret.Error(1)
}

// ContextManager is a mock of model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func NewContextManager(t testingT) *ContextManager {
	return register(t, &ContextManager{})
}

func (_m *ContextManager) SetPayloadToContext(ctx context.Context, payload model.Payload) context.Context {
	ret := _m.Called(ctx, payload)
	return ret.Get(0).(context.Context)
}

func (_m *ContextManager) GetPayloadFromContext(ctx context.Context) (model.Payload, bool) {
	ret := _m.Called(ctx)
	payload, _ := ret.Get(0).(model.Payload)
	return payload, ret.Bool(1)
}

// HealthChecker is a mock of model.HealthChecker.
type HealthChecker struct {
	mock.Mock
}

func NewHealthChecker(t testingT) *HealthChecker {
	return register(t, &HealthChecker{})
}

func (_m *HealthChecker) PingContext(ctx context.Context) error {
	return _m.Called(ctx).Error(0)
}

// CardService is a mock of handler.CardService.
type CardService struct {
	mock.Mock
}

func NewCardService(t testingT) *CardService {
	return register(t, &CardService{})
}

func (_m *CardService) IssueCardToken(ctx context.Context, id model.Identity) (string, error) {
	ret := _m.Called(ctx, id)
	return ret.String(0), ret.Error(1)
}

func (_m *CardService) IssuePhotoToken(ctx context.Context, id model.Identity) (string, string, error) {
	ret := _m.Called(ctx, id)
	return ret.String(0), ret.String(1), ret.Error(2)
}

func (_m *CardService) VerifyCard(token string) (model.Payload, error) {
	ret := _m.Called(token)
	payload, _ := ret.Get(0).(model.Payload)
	return payload, ret.Error(1)
}

func (_m *CardService) RequestMagicLink(ctx context.Context, email, requester string) (model.MagicLink, error) {
	ret := _m.Called(ctx, email, requester)
	return ret.Get(0).(model.MagicLink), ret.Error(1)
}

func (_m *CardService) ConsumeMagicLink(ctx context.Context, token string) (model.Identity, error) {
	ret := _m.Called(ctx, token)
	return ret.Get(0).(model.Identity), ret.Error(1)
}

// PhotoService is a mock of handler.PhotoService.
type PhotoService struct {
	mock.Mock
}

func NewPhotoService(t testingT) *PhotoService {
	return register(t, &PhotoService{})
}

func (_m *PhotoService) ReadPhotoWithToken(ctx context.Context, token, photoID string) ([]byte, error) {
	ret := _m.Called(ctx, token, photoID)
	data, _ := ret.Get(0).([]byte)
	return data, ret.Error(1)
}

// LinkSender is a mock of handler.LinkSender.
type LinkSender struct {
	mock.Mock
}

func NewLinkSender(t testingT) *LinkSender {
	return register(t, &LinkSender{})
}

func (_m *LinkSender) SendMagicLink(ctx context.Context, link model.MagicLink) error {
	return _m.Called(ctx, link).Error(0)
}

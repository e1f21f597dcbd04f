package integration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/client/wpp"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
)

const sessionPrefix = "info_agent_"

const DATA_CONNECTED = "connected"

func whatsappDefinition(deps Dependencies) *flow.Definition {
	w := &whatsappSteps{deps: deps}
	return &flow.Definition{
		Name: FLOW_WHATSAPP,
		Steps: []flow.Step{
			flow.NewStep("explain_login", w.explain),
			flow.NewStep("create_session", w.createSession),
			flow.NewStep("send_qr_code", w.sendQRCode),
			flow.NewStep("confirm_connection", w.confirmConnection),
		},
		OnComplete: flow.NOOP,
		OnStop:     w.onStop,
		OnFailure:  w.onFailure,
		UsageHint:  UsageHint,
	}
}

type whatsappSteps struct {
	deps Dependencies
}

func (w *whatsappSteps) explain(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	if err := notifyAll(ctx, sc, textWhatsappExplain, textProceed); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: fmt.Sprintf("Step 1 completed: Explanation message sent to %s", user.Name)}, nil
}

func (w *whatsappSteps) createSession(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	session := sessionPrefix + user.Phone
	token, err := w.deps.Gateway.GenerateToken(ctx, session)
	if err != nil {
		return flow.StepResult{}, fmt.Errorf("generate session token: %w", err)
	}
	if _, err := sc.UpdateUser(ctx, model.UserUpdate{WppSessionId: model.String(session), WppToken: model.String(token)}); err != nil {
		return flow.StepResult{}, err
	}
	if err := sc.Notify(ctx, textWhatsappBeQuick); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: fmt.Sprintf("Step 2 completed: Session %s and token saved for user %s", session, user.Name)}, nil
}

func (w *whatsappSteps) sendQRCode(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	if len(user.WppSessionId) == 0 {
		return flow.StepResult{}, fmt.Errorf("user %s has no chat session", user.Id)
	}
	if err := sc.Notify(ctx, textWhatsappWaitQR); err != nil {
		return flow.StepResult{}, err
	}
	var qrCode string
	ok, err := w.deps.Poll.until(ctx, func() (bool, error) {
		st, err := w.deps.Gateway.StartSession(ctx, user.WppSessionId, user.WppToken)
		if err != nil {
			return false, err
		}
		if st.Status == wpp.STATUS_QRCODE && len(st.QRCode) > 0 {
			qrCode = st.QRCode
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return flow.StepResult{}, fmt.Errorf("start session: %w", err)
	}
	if !ok {
		return flow.StepResult{}, fmt.Errorf("qr code not available for session %s", user.WppSessionId)
	}
	image := flow.Image{Base64: qrCode, Filename: "qr_code.png", Caption: textWhatsappQRCaption}
	if err := sc.Messenger.SendImage(ctx, user.Phone, image); err != nil {
		return flow.StepResult{}, fmt.Errorf("send qr code: %w", err)
	}
	return flow.StepResult{Message: fmt.Sprintf("Step 3 completed: QR-Code was sent for user %s", user.Name), AutoContinue: true}, nil
}

func (w *whatsappSteps) confirmConnection(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	connected, err := w.deps.Poll.until(ctx, func() (bool, error) {
		st, err := w.deps.Gateway.SessionStatus(ctx, user.WppSessionId, user.WppToken)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(st.Message, wpp.STATUS_CONNECTED), nil
	})
	if err != nil {
		logger.Warn("session status polling failed", zap.String("subject", sc.SubjectId), zap.String("session", user.WppSessionId), zap.Error(err))
	}
	sc.Data[DATA_CONNECTED] = connected

	var message string
	if connected {
		if err := sc.Notify(ctx, textWhatsappSuccess); err != nil {
			return flow.StepResult{}, err
		}
		if _, err := sc.UpdateUser(ctx, model.UserUpdate{WhatsappIntegration: model.Bool(true)}); err != nil {
			return flow.StepResult{}, err
		}
		tellOnboardingAgent(ctx, w.deps.Agents, sc, agentWhatsappSuccess)
		message = fmt.Sprintf("Step 4 completed: Integration completed for user %s", user.Name)
	} else {
		if err := sc.Notify(ctx, textWhatsappFailure); err != nil {
			return flow.StepResult{}, err
		}
		tellOnboardingAgent(ctx, w.deps.Agents, sc, agentWhatsappFailure)
		message = fmt.Sprintf("Step 4 completed: Something went wrong and the integration is not completed for user %s", user.Name)
	}
	if err := clearMarker(ctx, sc); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: message, AutoContinue: true}, nil
}

func (w *whatsappSteps) onStop(ctx context.Context, sc *flow.StepContext, _ error) error {
	if err := sc.Notify(ctx, textWhatsappCanceled); err != nil {
		return err
	}
	tellOnboardingAgent(ctx, w.deps.Agents, sc, agentWhatsappCanceled)
	return clearMarker(ctx, sc)
}

func (w *whatsappSteps) onFailure(ctx context.Context, sc *flow.StepContext, cause error) error {
	if err := sc.Notify(ctx, textWhatsappFailure); err != nil {
		logger.Warn("could not notify failure", zap.String("subject", sc.SubjectId), zap.Error(err))
	}
	tellOnboardingAgent(ctx, w.deps.Agents, sc, agentWhatsappFailure)
	return clearMarker(ctx, sc)
}

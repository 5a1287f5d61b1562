package model

import (
	"time"

	baseModel "storefront/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Context 核验场景
type Context string

const (
	ContextRecharge Context = "RECHARGE"
	ContextOrder    Context = "ORDER"
	ContextGeneral  Context = "GENERAL"
)

func (c Context) Valid() bool {
	switch c {
	case ContextRecharge, ContextOrder, ContextGeneral:
		return true
	}
	return false
}

// 银行响应码，BANK_UNAVAILABLE 表示接口不可用而非核验失败
const (
	CodeBankUnavailable = "BANK_UNAVAILABLE"
	CodeNotFound        = "NOT_FOUND"
)

// ReferenceIndex 已核验的参考号唯一
const ReferenceIndex = "ux_pago_movil_referencia_verificada"

// PagoMovilVerificacion 每次核验尝试一行，不论成功与否
type PagoMovilVerificacion struct {
	baseModel.BaseModel
	UserID          string          `gorm:"type:uuid;index;not null" json:"userId"`
	PayerPhone      string          `gorm:"column:telefono_pagador;size:20;not null" json:"telefonoPagador"`
	PayerID         string          `gorm:"column:cedula_pagador;size:12;not null" json:"cedulaPagador"`
	BankCode        string          `gorm:"column:banco_origen;size:4;not null" json:"bancoOrigen"`
	Reference       string          `gorm:"column:referencia;size:8;not null;index;uniqueIndex:ux_pago_movil_referencia_verificada,where:verificado = true" json:"referencia"`
	PaymentDate     time.Time       `gorm:"column:fecha_pago;type:date;not null" json:"fechaPago"`
	RequestedAmount decimal.Decimal `gorm:"column:importe_solicitado;type:numeric(14,2);not null" json:"importeSolicitado"`
	VerifiedAmount  decimal.Decimal `gorm:"column:importe_verificado;type:numeric(14,2)" json:"importeVerificado"`
	ResponseCode    string          `gorm:"column:codigo_respuesta;size:32" json:"codigoRespuesta"`
	ResponseMessage string          `gorm:"column:mensaje_respuesta;size:255" json:"mensajeRespuesta"`
	RawResponse     datatypes.JSON  `gorm:"column:respuesta_banco;type:jsonb" json:"-"`
	Verified        bool            `gorm:"column:verificado;not null" json:"verificado"`
	Context         Context         `gorm:"column:contexto;size:16;not null" json:"contexto"`
	TransactionID   *string         `gorm:"type:uuid" json:"transactionId,omitempty"`
	OrderID         *string         `gorm:"type:uuid" json:"orderId,omitempty"`
}

func (PagoMovilVerificacion) TableName() string {
	return "pago_movil_verificaciones"
}

package repository

import "errors"

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrCustomerAlreadySet billing_customer_id уже установлен другим значением
	ErrCustomerAlreadySet = errors.New("billing customer already set")

	// ErrInvalidData неверные данные
	ErrInvalidData = errors.New("invalid data")
)

package genieconfig

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// UpdateFromEnvs updates fields from environmental variables.
// Empty values are ignored and do not overwrite fields with empty values.
// WARNING: The environmetal variable value always overwrites current field
// values if there's a conflict.
func (cfg *Config) UpdateFromEnvs() (err error) {
	if cfg.mu == nil {
		cfg.mu = new(sync.RWMutex)
	}
	cfg.mu.Lock()
	defer func() {
		cfg.unsafeSync()
		cfg.mu.Unlock()
	}()

	var vv interface{}
	vv, err = parseEnvs(GENIENLP_TESTER_PREFIX, cfg)
	if err != nil {
		return err
	}
	if _, ok := vv.(*Config); !ok {
		return fmt.Errorf("expected *Config, got %T", vv)
	}

	if cfg.Multilingual == nil {
		cfg.Multilingual = &Multilingual{}
	}
	vv, err = parseEnvs(GENIENLP_TESTER_MULTILINGUAL_PREFIX, cfg.Multilingual)
	if err != nil {
		return err
	}
	if av, ok := vv.(*Multilingual); ok {
		cfg.Multilingual = av
	} else {
		return fmt.Errorf("expected *Multilingual, got %T", vv)
	}

	if cfg.Paraphrase == nil {
		cfg.Paraphrase = &Paraphrase{}
	}
	vv, err = parseEnvs(GENIENLP_TESTER_PARAPHRASE_PREFIX, cfg.Paraphrase)
	if err != nil {
		return err
	}
	if av, ok := vv.(*Paraphrase); ok {
		cfg.Paraphrase = av
	} else {
		return fmt.Errorf("expected *Paraphrase, got %T", vv)
	}

	if cfg.FineTune == nil {
		cfg.FineTune = &FineTune{}
	}
	vv, err = parseEnvs(GENIENLP_TESTER_FINE_TUNE_PREFIX, cfg.FineTune)
	if err != nil {
		return err
	}
	if av, ok := vv.(*FineTune); ok {
		cfg.FineTune = av
	} else {
		return fmt.Errorf("expected *FineTune, got %T", vv)
	}

	return nil
}

func parseEnvs(pfx string, block interface{}) (interface{}, error) {
	tp, vv := reflect.TypeOf(block).Elem(), reflect.ValueOf(block).Elem()
	for i := 0; i < tp.NumField(); i++ {
		jv := tp.Field(i).Tag.Get("json")
		if jv == "" {
			continue
		}
		jv = strings.Replace(jv, ",omitempty", "", -1)
		jv = strings.ToUpper(strings.Replace(jv, "-", "_", -1))
		env := pfx + jv
		sv := os.Getenv(env)
		if sv == "" {
			continue
		}
		if tp.Field(i).Tag.Get("read-only") == "true" { // error when read-only field is set for update
			return nil, fmt.Errorf("'%s=%s' is 'read-only' field; should not be set!", env, sv)
		}
		fieldName := tp.Field(i).Name

		switch vv.Field(i).Type().Kind() {
		case reflect.String:
			vv.Field(i).SetString(sv)

		case reflect.Bool:
			bb, err := strconv.ParseBool(sv)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %q (field name %q, environmental variable key %q, error %v)", sv, fieldName, env, err)
			}
			vv.Field(i).SetBool(bb)

		case reflect.Int, reflect.Int32, reflect.Int64:
			if vv.Field(i).Type().Name() == "Duration" {
				iv, err := time.ParseDuration(sv)
				if err != nil {
					return nil, fmt.Errorf("failed to parse %q (field name %q, environmental variable key %q, error %v)", sv, fieldName, env, err)
				}
				vv.Field(i).SetInt(int64(iv))
			} else {
				iv, err := strconv.ParseInt(sv, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("failed to parse %q (field name %q, environmental variable key %q, error %v)", sv, fieldName, env, err)
				}
				vv.Field(i).SetInt(iv)
			}

		case reflect.Uint, reflect.Uint32, reflect.Uint64:
			iv, err := strconv.ParseUint(sv, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %q (field name %q, environmental variable key %q, error %v)", sv, fieldName, env, err)
			}
			vv.Field(i).SetUint(iv)

		case reflect.Float32, reflect.Float64:
			fv, err := strconv.ParseFloat(sv, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %q (field name %q, environmental variable key %q, error %v)", sv, fieldName, env, err)
			}
			vv.Field(i).SetFloat(fv)

		case reflect.Slice: // only supports "[]string" for now
			if vv.Field(i).Type().Elem().Kind() != reflect.String {
				return nil, fmt.Errorf("field %q not supported for reflect.Slice", fieldName)
			}
			ss := strings.Split(sv, ",")
			if len(ss) < 1 {
				continue
			}
			slice := reflect.MakeSlice(reflect.TypeOf([]string{}), len(ss), len(ss))
			for j := range ss {
				slice.Index(j).SetString(ss[j])
			}
			vv.Field(i).Set(slice)

		default:
			return nil, fmt.Errorf("%q (type %v) is not supported as an env", env, vv.Field(i).Type())
		}
	}
	return block, nil
}
